package config

import (
	"encoding/json"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// SummarizeConfigChange returns (1) the changed sections, (2) structured
// attrs for the reload log line and (3) the names of jobs that were added,
// removed or modified.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.listen", strings.TrimSpace(newCfg.Scheduler.Listen)),
		)
	}
	if oldCfg.Runner != newCfg.Runner {
		changed = append(changed, "runner")
		attrs = append(attrs,
			logx.Int("runner.workers", newCfg.Runner.Workers),
			logx.Int("runner.queue_size", newCfg.Runner.QueueSize),
		)
	}
	if oldCfg.Catalog != newCfg.Catalog {
		changed = append(changed, "catalog")
		attrs = append(attrs, logx.String("catalog.driver", newCfg.Catalog.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Clients, newCfg.Clients) {
		changed = append(changed, "clients")
		attrs = append(attrs, logx.Int("clients.count", len(newCfg.Clients)))
	}
	if !reflect.DeepEqual(oldCfg.Schedules, newCfg.Schedules) {
		changed = append(changed, "schedules")
		attrs = append(attrs, logx.Int("schedules.count", len(newCfg.Schedules)))
	}

	jobs := diffJobs(oldCfg, newCfg)
	if len(jobs) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs, logx.Int("jobs.count", len(newCfg.Jobs)), logx.Strings("jobs.changed", jobs))
	}

	sort.Strings(changed)
	return changed, attrs, jobs
}

// diffJobs compares jobs by name. A job whose schedule's run entries changed
// counts as changed too.
func diffJobs(oldCfg, newCfg *Config) []string {
	oldH := jobHashes(oldCfg)
	newH := jobHashes(newCfg)

	out := make([]string, 0)
	for name, h := range newH {
		if oh, ok := oldH[name]; !ok || oh != h {
			out = append(out, name)
		}
	}
	for name := range oldH {
		if _, ok := newH[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func jobHashes(cfg *Config) map[string]uint64 {
	runs := map[string][]string{}
	for _, s := range cfg.Schedules {
		runs[strings.ToLower(s.Name)] = s.Run
	}
	out := make(map[string]uint64, len(cfg.Jobs))
	for _, j := range cfg.Jobs {
		b, err := json.Marshal(struct {
			Job JobConfig
			Run []string
		}{j, runs[strings.ToLower(j.Schedule)]})
		if err != nil {
			continue
		}
		h := fnv.New64a()
		_, _ = h.Write(b)
		out[j.Name] = h.Sum64()
	}
	return out
}
