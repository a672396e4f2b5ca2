package config

import (
	"strings"

	logx "reviewbot/pkg/logx"
)

// SummarizeChange returns the changed sections, safe structured attrs for
// logging (never tokens), and the sections that only take effect after a
// restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Practicum != newCfg.Practicum {
		changed = append(changed, "practicum")
		attrs = append(attrs,
			logx.String("practicum.poll_interval", strings.TrimSpace(newCfg.Practicum.PollInterval)),
			logx.String("practicum.timeout", strings.TrimSpace(newCfg.Practicum.Timeout)),
		)
		if strings.TrimSpace(oldCfg.Practicum.Endpoint) != strings.TrimSpace(newCfg.Practicum.Endpoint) ||
			strings.TrimSpace(oldCfg.Practicum.Timeout) != strings.TrimSpace(newCfg.Practicum.Timeout) {
			restart = append(restart, "practicum.endpoint/timeout")
		}
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
		)
		restart = append(restart, "telegram")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		n := newCfg.Notifier
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
			logx.Int("notifier.retry_max", n.RetryMax),
			logx.String("notifier.dedup_window", n.DedupWindow),
			logx.Bool("notifier.persist_dedup", n.PersistDedup),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
		restart = append(restart, "storage")
	}

	// never log the token itself
	o, n := oldCfg.Observability, newCfg.Observability
	if o != n {
		changed = append(changed, "observability")
		attrs = append(attrs,
			logx.Bool("observability.enabled", n.Enabled),
			logx.String("observability.addr", n.Addr),
			logx.Bool("observability.token_set", strings.TrimSpace(n.Token) != ""),
			logx.Bool("observability.pprof", n.Pprof),
		)
	}

	return changed, attrs, restart
}
