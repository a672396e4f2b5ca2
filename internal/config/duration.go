package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Settings durations are Go duration strings ("90s", "5m"). An empty value
// is unset.

var ErrNegativeDuration = errors.New("duration must be >= 0")

// ParseDurationField parses the value of the settings key at path. Unset is 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	return parseDuration(path, raw, 0)
}

// ParseDurationOrDefault is ParseDurationField with def for unset or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return parseDuration(path, raw, def)
}

func parseDuration(path, raw string, unset time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return unset, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fieldError(path, errors.Wrapf(err, "invalid duration %q", raw))
	case d < 0:
		return 0, fieldError(path, errors.Wrapf(ErrNegativeDuration, "got %s", d))
	case d == 0:
		return unset, nil
	}
	return d, nil
}

// fieldError prefixes err with the settings key and marks it invalid.
func fieldError(path string, err error) error {
	return errors.Mark(errors.Wrap(err, path), ErrConfigInvalid)
}
