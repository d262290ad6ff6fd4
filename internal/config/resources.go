package config

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/calendar"
	"github.com/bareos/bareos-sub019/internal/resource"
)

var levels = map[string]string{
	"full":         "Full",
	"incremental":  "Incremental",
	"differential": "Differential",
	"virtualfull":  "VirtualFull",
	"base":         "Base",
}

// Warning is a non-fatal problem found while building resources.
type Warning struct {
	Resource string // e.g. `schedule "WeeklyCycle"`
	Message  string
}

func (w Warning) String() string { return w.Resource + ": " + w.Message }

// BuildResources parses every schedule and resolves job references into an
// immutable resource.Set. Nothing is returned on error.
func BuildResources(cfg *Config) (*resource.Set, []Warning, error) {
	if cfg == nil {
		return resource.Empty(), nil, nil
	}
	var warns []Warning

	clients := make([]*resource.Client, 0, len(cfg.Clients))
	clientOn := map[string]bool{}
	for i, c := range cfg.Clients {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, nil, errors.Newf("clients[%d]: name is required", i)
		}
		clients = append(clients, &resource.Client{Name: name, Enabled: enabled(c.Enabled)})
		clientOn[strings.ToLower(name)] = enabled(c.Enabled)
	}

	schedules := make([]*calendar.Schedule, 0, len(cfg.Schedules))
	for i, sc := range cfg.Schedules {
		s, w, err := buildSchedule(i, sc)
		if err != nil {
			return nil, nil, err
		}
		schedules = append(schedules, s)
		warns = append(warns, w...)
	}
	byName := make(map[string]*calendar.Schedule, len(schedules))
	for _, s := range schedules {
		byName[strings.ToLower(s.Name)] = s
	}

	jobs := make([]*resource.Job, 0, len(cfg.Jobs))
	for i, jc := range cfg.Jobs {
		j, err := buildJob(i, jc, byName)
		if err != nil {
			return nil, nil, err
		}
		res := fmt.Sprintf("job %q", j.Name)
		if on, known := clientOn[strings.ToLower(j.Client)]; known && !on && j.Enabled {
			warns = append(warns, Warning{Resource: res, Message: fmt.Sprintf("client %q is disabled; job only runs on demand", j.Client)})
		}
		if j.Enabled && j.Schedule == nil && j.ConnectInterval == 0 {
			warns = append(warns, Warning{Resource: res, Message: "no schedule and no connect interval; job only runs on demand"})
		}
		jobs = append(jobs, j)
	}

	set, err := resource.NewSet(clients, schedules, jobs)
	if err != nil {
		return nil, nil, err
	}
	return set, warns, nil
}

func buildSchedule(i int, sc ScheduleConfig) (*calendar.Schedule, []Warning, error) {
	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return nil, nil, errors.Newf("schedules[%d]: name is required", i)
	}
	res := fmt.Sprintf("schedule %q", name)
	s := &calendar.Schedule{Name: name}
	var warns []Warning
	if len(sc.Run) == 0 {
		warns = append(warns, Warning{Resource: res, Message: "no run entries; schedule never fires"})
	}
	for ri, run := range sc.Run {
		parsed, w, err := calendar.Parse(run)
		if err != nil {
			err = errors.Wrapf(err, "%s run[%d]", res, ri)
			return nil, nil, errors.WithHint(err, "see the schedule syntax: [overrides] [hourly|daily] [week/day/month specs] at HH:MM")
		}
		s.Clauses = append(s.Clauses, parsed.Clauses...)
		for _, cw := range w {
			warns = append(warns, Warning{Resource: fmt.Sprintf("%s run[%d]", res, ri), Message: cw.String()})
		}
	}
	return s, warns, nil
}

func buildJob(i int, jc JobConfig, schedules map[string]*calendar.Schedule) (*resource.Job, error) {
	path := fmt.Sprintf("jobs[%d]", i)
	name := strings.TrimSpace(jc.Name)
	if name == "" {
		return nil, errors.Newf("%s: name is required", path)
	}
	path = fmt.Sprintf("job %q", name)
	if strings.TrimSpace(jc.Client) == "" {
		return nil, errors.Newf("%s: client is required", path)
	}

	j := &resource.Job{
		Name:     name,
		Client:   strings.TrimSpace(jc.Client),
		Priority: jc.Priority,
		Enabled:  enabled(jc.Enabled),
		Command:  jc.Command,
	}
	switch {
	case jc.Priority < 0:
		return nil, errors.Newf("%s: priority must be positive", path)
	case jc.Priority == 0:
		j.Priority = resource.DefaultPriority
	}

	if lv := strings.TrimSpace(jc.Level); lv != "" {
		canon, ok := levels[strings.ToLower(lv)]
		if !ok {
			return nil, errors.Newf("%s: unknown level %q", path, lv)
		}
		j.Level = canon
	}

	if sn := strings.TrimSpace(jc.Schedule); sn != "" {
		s, ok := schedules[strings.ToLower(sn)]
		if !ok {
			return nil, errors.WithHint(
				errors.Newf("%s: unknown schedule %q", path, sn),
				"define it under schedules or remove the reference",
			)
		}
		j.Schedule = s
	}

	var err error
	if j.Timeout, err = ParseDurationField(path+".timeout", jc.Timeout); err != nil {
		return nil, err
	}
	if j.ConnectInterval, err = ParseDurationField(path+".run_on_incoming_connect_interval", jc.RunOnIncomingConnectInterval); err != nil {
		return nil, err
	}
	return j, nil
}
