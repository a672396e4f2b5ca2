package config

import (
	"net"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Validate checks field syntax. It does not look at poll_interval beyond
// non-emptiness; the poller owns schedule parsing and callers add that check
// through Manager.SetValidator.
func (c *Config) Validate() error {
	if c == nil {
		return errors.Mark(errors.New("config is nil"), ErrConfigInvalid)
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if ep := strings.TrimSpace(c.Practicum.Endpoint); ep != "" {
		if u, err := url.ParseRequestURI(ep); err != nil || u.Host == "" {
			add(errors.Newf("practicum.endpoint: invalid URL %q", ep))
		}
	}
	dur("practicum.timeout", c.Practicum.Timeout)
	if strings.TrimSpace(c.Practicum.PollInterval) == "" {
		add(errors.New("practicum.poll_interval: must not be empty"))
	}

	if api := strings.TrimSpace(c.Telegram.APIURL); api != "" {
		if _, err := url.ParseRequestURI(api); err != nil {
			add(errors.Newf("telegram.api_url: invalid URL %q", api))
		}
	}
	if c.Telegram.ThreadID < 0 {
		add(errors.New("telegram.thread_id: must be >= 0"))
	}
	dur("telegram.timeout", c.Telegram.Timeout)

	n := c.Notifier
	if n.RatePerSec < 0 {
		add(errors.New("notifier.rate_per_sec: must be >= 0"))
	}
	if n.RetryMax < 0 {
		add(errors.New("notifier.retry_max: must be >= 0"))
	}
	dur("notifier.retry_base", n.RetryBase)
	dur("notifier.retry_max_delay", n.RetryMaxDelay)
	dur("notifier.dedup_window", n.DedupWindow)

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add(errors.New("storage.path: required when a driver is set"))
		}
	default:
		add(errors.Newf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	dur("storage.busy_timeout", c.Storage.BusyTimeout)

	if o := c.Observability; o.Enabled && strings.TrimSpace(o.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(o.Addr)); err != nil {
			add(errors.Wrapf(err, "observability.addr %q", o.Addr))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return errors.Mark(errors.Newf("invalid settings: %s", strings.Join(msgs, "; ")), ErrConfigInvalid)
}
