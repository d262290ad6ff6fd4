// Package config loads the director configuration and turns it into the
// resources the scheduler works on.
//
// Files are YAML (.yaml/.yml) or JSON; both go through the same strict
// JSON decoder, so unknown fields are rejected. Durations are Go duration
// strings ("90s", "1h30m").
package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Runner    RunnerConfig    `json:"runner"`
	Catalog   CatalogConfig   `json:"catalog"`

	Clients   []ClientConfig   `json:"clients"`
	Schedules []ScheduleConfig `json:"schedules"`
	Jobs      []JobConfig      `json:"jobs"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type SchedulerConfig struct {
	// Timezone is an IANA name; empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`

	// MaxWait caps a single sleep of the scheduler loop. Default 60s.
	MaxWait string `json:"max_wait,omitempty"`

	// Listen is the TCP address for client connections and operator
	// commands. Empty disables the listener.
	Listen string `json:"listen,omitempty"`

	// ConnectRate limits catalog lookups per client when clients
	// reconnect quickly. Empty means no limit.
	ConnectRate string `json:"connect_rate,omitempty"`
}

type RunnerConfig struct {
	Workers            int    `json:"workers,omitempty"`
	QueueSize          int    `json:"queue_size,omitempty"`
	HistorySize        int    `json:"history_size,omitempty"`
	DefaultTimeout     string `json:"default_timeout,omitempty"`
	AllowDuplicateJobs bool   `json:"allow_duplicate_jobs,omitempty"`
}

type CatalogConfig struct {
	Driver      string `json:"driver"`                 // "sqlite", "file" or "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type ClientConfig struct {
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled,omitempty"` // default true
}

// ScheduleConfig holds one named schedule. Each Run entry is parsed as
// one or more calendar clauses.
type ScheduleConfig struct {
	Name string   `json:"name"`
	Run  []string `json:"run"`
}

type JobConfig struct {
	Name     string `json:"name"`
	Client   string `json:"client"`
	Schedule string `json:"schedule,omitempty"`
	Priority int    `json:"priority,omitempty"` // default 10
	Enabled  *bool  `json:"enabled,omitempty"`  // default true
	Level    string `json:"level,omitempty"`
	Command  string `json:"command,omitempty"`
	Timeout  string `json:"timeout,omitempty"`

	RunOnIncomingConnectInterval string `json:"run_on_incoming_connect_interval,omitempty"`
}

func enabled(p *bool) bool { return p == nil || *p }
