package poller

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultInterval is the fixed delay between polls.
	DefaultInterval = 600 * time.Second
	// MinInterval is the shortest accepted poll_interval.
	MinInterval = time.Second
)

var ErrIntervalTooShort = errors.New("poll interval below minimum")

// Schedule decides when the next poll starts.
//
// Supported forms:
//   - Go duration: "10m", "90s"
//   - HH:MM interval: "00:10" (10 minutes), "01:30"
//   - Cron: "*/10 * * * *", "0 9-18 * * 1-5", "@hourly", "@every 10m"
//
// Optional prefixes "cron:" and "every:" force one interpretation.
type Schedule struct {
	cron.Schedule
	Spec string
	// Every is the fixed interval, zero for cron expressions.
	Every time.Duration
}

func (s Schedule) String() string { return s.Spec }

// Wait returns how long to sleep after now before the next poll.
func (s Schedule) Wait(now time.Time) time.Duration {
	if s.Schedule == nil {
		return DefaultInterval
	}
	next := s.Next(now)
	if next.IsZero() {
		// cron expression that never fires again
		return DefaultInterval
	}
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Fixed wraps an interval. Unlike cron.Every it keeps sub-second precision.
func Fixed(d time.Duration) Schedule {
	if d <= 0 {
		d = DefaultInterval
	}
	return Schedule{Schedule: fixedSchedule(d), Spec: d.String(), Every: d}
}

type fixedSchedule time.Duration

func (f fixedSchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule turns a poll_interval setting into a Schedule.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, errors.New("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return Schedule{}, err
		}
		return Fixed(d), nil
	}

	// any whitespace or leading '@' => cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	d, err := parseInterval(s)
	if errors.Is(err, ErrIntervalTooShort) {
		return Schedule{}, err
	}
	if err != nil {
		return Schedule{}, errors.Newf(
			"invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')",
			raw,
		)
	}
	return Fixed(d), nil
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, errors.New("cron expression required")
	}
	cs, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, errors.Wrapf(err, "invalid cron %q", expr)
	}
	sched := Schedule{Schedule: cs, Spec: expr}
	if every, ok := cs.(cron.ConstantDelaySchedule); ok {
		sched.Every = every.Delay
	}
	return sched, nil
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, errors.New("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, errors.Newf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, errors.New("interval must be > 0")
		}
		return d, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Newf("invalid interval %q", v)
	}
	if d <= 0 {
		return 0, errors.New("interval must be > 0")
	}
	if d < MinInterval {
		return 0, errors.Wrapf(ErrIntervalTooShort, "interval %s (minimum %s)", d, MinInterval)
	}
	return d, nil
}
