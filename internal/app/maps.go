package app

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"reviewbot/internal/config"
	"reviewbot/internal/notifier"
	"reviewbot/internal/observability/server"
	"reviewbot/internal/poller"
	"reviewbot/internal/practicum"
	"reviewbot/internal/storage"
	telegram "reviewbot/internal/transport/telegram/adapter"
	logx "reviewbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapPracticumConfig(cfg *config.Config, token string) (practicum.Config, error) {
	timeout, err := config.ParseDurationOrDefault("practicum.timeout", cfg.Practicum.Timeout, practicum.DefaultTimeout)
	if err != nil {
		return practicum.Config{}, err
	}
	return practicum.Config{
		Endpoint:  strings.TrimSpace(cfg.Practicum.Endpoint),
		Token:     token,
		Timeout:   timeout,
		UserAgent: "reviewbot/" + Version,
	}, nil
}

func mapTelegramConfig(cfg *config.Config, token string) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 15*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: token, APIURL: cfg.Telegram.APIURL, Timeout: timeout}, nil
}

func mapSchedule(cfg *config.Config) (poller.Schedule, error) {
	raw := strings.TrimSpace(cfg.Practicum.PollInterval)
	if raw == "" {
		return poller.Fixed(poller.DefaultInterval), nil
	}
	s, err := poller.ParseSchedule(raw)
	if err != nil {
		return poller.Schedule{}, errors.Wrap(err, "practicum.poll_interval")
	}
	return s, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	if nc.RatePerSec < 0 {
		return notifier.Config{}, errors.New("notifier.rate_per_sec must be >= 0")
	}
	if nc.RetryMax < 0 {
		return notifier.Config{}, errors.New("notifier.retry_max must be >= 0")
	}
	if nc.DedupMaxEntries < 0 {
		return notifier.Config{}, errors.New("notifier.dedup_max_entries must be >= 0")
	}
	base, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	// one attempt may take as long as the Bot API client allows
	attempt, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 15*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       base,
		RetryMaxDelay:   maxDelay,
		AttemptTimeout:  attempt,
		DedupWindow:     window,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

// mapStorageConfig returns enabled=false for driver "" or "none".
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, errors.Newf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapObservabilityConfig(cfg *config.Config) server.Config {
	o := cfg.Observability
	return server.Config{
		Enabled:       o.Enabled,
		Addr:          strings.TrimSpace(o.Addr),
		Token:         strings.TrimSpace(o.Token),
		AllowInsecure: o.AllowInsecure,
		Pprof:         o.Pprof,
	}
}

// validateSettings runs every mapper so a bad reload is rejected before commit.
func validateSettings(cfg *config.Config) error {
	if _, err := mapPracticumConfig(cfg, "-"); err != nil {
		return err
	}
	if _, err := mapTelegramConfig(cfg, "-"); err != nil {
		return err
	}
	if _, err := mapSchedule(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}
