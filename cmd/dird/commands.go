package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bareos/bareos-sub019/internal/app"
	"github.com/bareos/bareos-sub019/internal/config"
	"github.com/bareos/bareos-sub019/internal/resource"
)

const defaultConfigPath = "/etc/dird/dird.yaml"

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "dird",
		Short:         "Backup director: schedules and dispatches backup jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to the config file (.yaml or .json)")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newCheckCmd(&cfgPath),
		newForecastCmd(&cfgPath),
	)
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the director in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.NewApp(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				reason = app.StopFatalError
			}
			fatal := a.Err()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			if err := a.Stop(stopCtx, reason); err != nil && fatal == nil {
				return err
			}
			return fatal
		},
	}
}

// loadResources parses and validates the config file without starting
// anything.
func loadResources(path string) (*config.Config, *resource.Set, []config.Warning, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := config.Resolve(cfg); err != nil {
		return nil, nil, nil, err
	}
	set, warns, err := config.BuildResources(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, set, warns, nil
}

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print every schedule in canonical form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, set, warns, err := loadResources(*cfgPath)
			if err != nil {
				for _, h := range errors.GetAllHints(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "hint:", h)
				}
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range warns {
				fmt.Fprintln(out, "warning:", w)
			}
			for _, s := range set.Schedules() {
				fmt.Fprintf(out, "schedule %s\n", s.Name)
				for _, line := range strings.Split(s.String(), "\n") {
					if line != "" {
						fmt.Fprintf(out, "  run %s\n", line)
					}
				}
			}
			fmt.Fprintf(out, "ok: %d clients, %d schedules, %d jobs\n",
				len(set.Clients()), len(set.Schedules()), len(set.Jobs()))
			return nil
		},
	}
}

type forecastRow struct {
	at    time.Time
	job   string
	level string
}

func newForecastCmd(cfgPath *string) *cobra.Command {
	var (
		job  string
		days int
		from string
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "List upcoming scheduled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			cfg, set, _, err := loadResources(*cfgPath)
			if err != nil {
				return err
			}
			loc := time.Local
			if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
				if loc, err = time.LoadLocation(tz); err != nil {
					return errors.Wrap(err, "scheduler.timezone")
				}
			}
			now := time.Now().In(loc)
			if from != "" {
				if now, err = time.ParseInLocation(time.DateTime, from, loc); err != nil {
					return errors.Wrap(err, "--from")
				}
			}

			jobs := set.Jobs()
			if job != "" {
				j, ok := set.Job(job)
				if !ok {
					return errors.Newf("unknown job %q", job)
				}
				jobs = []*resource.Job{j}
			}
			rows := forecast(jobs, now, now.AddDate(0, 0, days))
			writeForecast(cmd.OutOrStdout(), rows, now)
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "only this job")
	cmd.Flags().IntVar(&days, "days", 7, "number of days to look ahead")
	cmd.Flags().StringVar(&from, "from", "", `start instead of now ("2006-01-02 15:04:05" in the scheduler zone)`)
	return cmd
}

func forecast(jobs []*resource.Job, start, end time.Time) []forecastRow {
	var rows []forecastRow
	for _, j := range jobs {
		if !j.Enabled || j.Schedule == nil {
			continue
		}
		for _, occ := range j.Schedule.Occurrences(start, end) {
			level := j.Level
			if c := j.Schedule.Clauses[occ.Clause]; c.Override != nil && c.Override.Level != "" {
				level = c.Override.Level
			}
			if level == "" {
				level = "Incremental"
			}
			rows = append(rows, forecastRow{at: occ.Time, job: j.Name, level: level})
		}
	}
	sort.SliceStable(rows, func(i, k int) bool { return rows[i].at.Before(rows[k].at) })
	return rows
}

func writeForecast(w io.Writer, rows []forecastRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no scheduled runs")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %-12s %-20s %s\n",
			r.at.Format("Mon 2006-01-02 15:04"),
			r.level,
			r.job,
			humanize.RelTime(r.at, now, "ago", "from now"),
		)
	}
}
