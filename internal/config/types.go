package config

// Config is the optional settings file. Secrets never live here; they come
// from the environment (see Credentials).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Practicum     PracticumConfig     `json:"practicum"`
	Telegram      TelegramConfig      `json:"telegram"`
	Logging       LoggingConfig       `json:"logging"`
	Notifier      NotifierConfig      `json:"notifier"`
	Storage       StorageConfig       `json:"storage"`
	Observability ObservabilityConfig `json:"observability"`
}

type PracticumConfig struct {
	Endpoint string `json:"endpoint"`
	Timeout  string `json:"timeout"`
	// PollInterval accepts a Go duration ("10m"), an HH:MM interval
	// ("00:10"), "@every 10m", or a cron expression ("*/10 * * * *").
	PollInterval string `json:"poll_interval"`
}

type TelegramConfig struct {
	// APIURL overrides the Bot API base URL. Empty means api.telegram.org.
	APIURL   string `json:"api_url"`
	ThreadID int    `json:"thread_id"`
	Timeout  string `json:"timeout,omitempty"`
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

// NotifierConfig controls delivery policy.
//
// dedup_window "0s" disables suppression: every poll that finds a
// submission sends a message.
type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	storage: { driver: "sqlite", path: "./data/reviewbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ObservabilityConfig controls the optional HTTP server for /healthz,
// /metrics and pprof.
//
// Security note:
//   - Prefer binding to localhost (the default).
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type ObservabilityConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof"`
}

const (
	DefaultEndpoint     = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultPollInterval = "10m"
	DefaultObsAddr      = "127.0.0.1:9464"
)

// Defaults returns the settings used when no file exists. Parse decodes the
// file on top of these, so omitted keys keep their default.
func Defaults() *Config {
	return &Config{
		Practicum: PracticumConfig{
			Endpoint:     DefaultEndpoint,
			Timeout:      "30s",
			PollInterval: DefaultPollInterval,
		},
		Telegram: TelegramConfig{Timeout: "15s"},
		Logging: LoggingConfig{
			Level:   "DEBUG",
			Console: true,
			File:    LoggingFile{Path: "./reviewbot.log"},
		},
		Notifier: NotifierConfig{
			RatePerSec:      1,
			RetryBase:       "500ms",
			RetryMaxDelay:   "10s",
			DedupWindow:     "0s",
			DedupMaxEntries: 2000,
		},
		Storage: StorageConfig{
			Driver:      "none",
			Path:        "./data/reviewbot.db",
			BusyTimeout: "1s",
		},
		Observability: ObservabilityConfig{
			Addr:  DefaultObsAddr,
			Pprof: true,
		},
	}
}
