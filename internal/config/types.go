package config

// Config is the daemon's job file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Metrics MetricsConfig `json:"metrics"`
	Alerts  AlertsConfig  `json:"alerts"`
	Systemd SystemdConfig `json:"systemd"`
	Jobs    []JobConfig   `json:"jobs"`
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

// StorageConfig selects where firing history goes.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./onfly.db", "busy_timeout": "5s" }
//
// Drivers: "file" (JSON lines), "sqlite", "none".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// MetricsConfig controls the Prometheus endpoint.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9464"), especially with pprof
// enabled.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Path    string `json:"path,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}

type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram"`
}

// TelegramAlerts forwards failed and cancelled firings to one chat.
type TelegramAlerts struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token"` // never logged
	ChatID     int64   `json:"chat_id"`
	ThreadID   int     `json:"thread_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

// SystemdConfig enables sd_notify readiness and the watchdog keepalive job.
// Both are no-ops when not started by systemd.
type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

// JobConfig declares one job.
type JobConfig struct {
	Name string `json:"name"`
	// Schedule uses the forms accepted by schedule.Parse.
	Schedule string `json:"schedule"`
	// Delay overrides the first delay of interval schedules.
	Delay string `json:"delay,omitempty"`
	// Spread adds startup jitter to interval schedules.
	Spread  bool         `json:"spread,omitempty"`
	Timeout string       `json:"timeout,omitempty"`
	Action  ActionConfig `json:"action"`
}

// ActionConfig picks a built-in callback.
//
//	log:       message
//	exec:      command (argv), dir
//	http:      url, method, expect_status
//	speedtest: servers
//	unit:      unit, restart
type ActionConfig struct {
	Kind string `json:"kind"`

	Message string `json:"message,omitempty"`

	Command []string `json:"command,omitempty"`
	Dir     string   `json:"dir,omitempty"`

	URL          string `json:"url,omitempty"`
	Method       string `json:"method,omitempty"`
	ExpectStatus int    `json:"expect_status,omitempty"`

	Servers int `json:"servers,omitempty"`

	Unit    string `json:"unit,omitempty"`
	Restart bool   `json:"restart,omitempty"`
}

const (
	ActionLog       = "log"
	ActionExec      = "exec"
	ActionHTTP      = "http"
	ActionSpeedtest = "speedtest"
	ActionUnit      = "unit"
)

const (
	DefaultStorageDriver = "sqlite"
	DefaultStoragePath   = "./onfly.db"
	DefaultMetricsAddr   = "127.0.0.1:9464"
	DefaultMetricsPath   = "/metrics"
)

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "sqlite":
			c.Storage.Path = DefaultStoragePath
		case "file":
			c.Storage.Path = "./onfly-history.jsonl"
		}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Alerts.Telegram.RatePerSec <= 0 {
		c.Alerts.Telegram.RatePerSec = 1
	}
	for i := range c.Jobs {
		a := &c.Jobs[i].Action
		if a.Kind == ActionHTTP {
			if a.Method == "" {
				a.Method = "GET"
			}
			if a.ExpectStatus == 0 {
				a.ExpectStatus = 200
			}
		}
		if a.Kind == ActionSpeedtest && a.Servers <= 0 {
			a.Servers = 1
		}
	}
}
