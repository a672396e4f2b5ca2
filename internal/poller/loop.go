package poller

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"reviewbot/internal/homework"
	"reviewbot/internal/observability/metrics"
	"reviewbot/internal/practicum"
	logx "reviewbot/pkg/logx"
)

// ErrIterationPanic marks a panic recovered inside one iteration.
var ErrIterationPanic = errors.New("poll iteration panicked")

// Fetcher returns the decoded review API response for statuses changed
// since from (unix seconds).
type Fetcher interface {
	Fetch(ctx context.Context, from int64) (any, error)
}

// Notifier delivers one message. It handles its own failures.
type Notifier interface {
	Send(ctx context.Context, text string)
}

// Status is a point-in-time view of the loop for health checks.
type Status struct {
	Iterations  uint64
	Timestamp   int64
	LastRun     time.Time
	LastSuccess time.Time
	LastErrKind string
	Schedule    string
}

type Option func(*Loop)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// WithTimer replaces time.After for the between-iteration wait (tests).
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(l *Loop) { l.after = after }
}

// WithHeartbeat is called after every iteration (systemd watchdog).
func WithHeartbeat(fn func()) Option { return func(l *Loop) { l.heartbeat = fn } }

// WithTimestamp sets the initial from_date. Zero means "now" at Run.
func WithTimestamp(ts int64) Option { return func(l *Loop) { l.timestamp = ts } }

type Loop struct {
	fetch   Fetcher
	notify  Notifier
	metrics *metrics.Metrics
	log     logx.Logger

	now       func() time.Time
	after     func(time.Duration) <-chan time.Time
	heartbeat func()

	mu        sync.Mutex
	sched     Schedule
	timestamp int64
	status    Status
}

func New(fetch Fetcher, notify Notifier, sched Schedule, m *metrics.Metrics, log logx.Logger, opts ...Option) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sched.Schedule == nil {
		sched = Fixed(DefaultInterval)
	}
	l := &Loop{
		fetch:   fetch,
		notify:  notify,
		metrics: m,
		log:     log,
		now:     time.Now,
		after:   time.After,
		sched:   sched,
	}
	for _, o := range opts {
		if o != nil {
			o(l)
		}
	}
	return l
}

// SetSchedule swaps the wait policy; it applies from the next wait.
func (l *Loop) SetSchedule(s Schedule) {
	if s.Schedule == nil {
		return
	}
	l.mu.Lock()
	old := l.sched
	l.sched = s
	l.mu.Unlock()
	if old.Spec != s.Spec {
		l.log.Info("poll schedule changed", logx.String("from", old.Spec), logx.String("to", s.Spec))
	}
}

// Timestamp returns the current from_date cursor.
func (l *Loop) Timestamp() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timestamp
}

// NextWait returns how long the loop would sleep if an iteration ended at now.
func (l *Loop) NextWait(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sched.Wait(now)
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.status
	st.Timestamp = l.timestamp
	st.Schedule = l.sched.Spec
	return st
}

// Run polls until ctx is done. It always returns nil; per-iteration errors
// are logged and counted, never returned.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.timestamp == 0 {
		l.timestamp = l.now().Unix()
	}
	spec := l.sched.Spec
	from := l.timestamp
	l.mu.Unlock()

	l.log.Debug("bot started", logx.String("schedule", spec), logx.Int64("from_date", from))
	for {
		if ctx.Err() != nil {
			l.log.Info("poll loop stopped")
			return nil
		}

		// In-flight work finishes even if shutdown starts meanwhile.
		l.iterate(context.WithoutCancel(ctx))
		if l.heartbeat != nil {
			l.heartbeat()
		}

		l.mu.Lock()
		wait := l.sched.Wait(l.now())
		l.mu.Unlock()
		l.log.Trace("waiting for next poll", logx.Duration("wait", wait))

		select {
		case <-ctx.Done():
			l.log.Info("poll loop stopped")
			return nil
		case <-l.after(wait):
		}
	}
}

// iterate runs one Poll and advances the timestamp regardless of outcome.
func (l *Loop) iterate(ctx context.Context) {
	pollID := uuid.NewString()
	log := l.log.With(logx.String("poll_id", pollID))
	start := l.now()
	from := l.Timestamp()

	empty, err := l.safePoll(ctx, from, log)

	done := l.now()
	kind := ErrorKind(err)
	result := metrics.ResultOK
	switch {
	case err != nil:
		result = metrics.ResultError
		log.Error("program failure", logx.String("kind", kind), logx.Err(err))
	case empty:
		result = metrics.ResultEmpty
	}

	l.mu.Lock()
	// Never move the cursor backwards (clock steps, NTP corrections).
	if ts := done.Unix(); ts > l.timestamp {
		l.timestamp = ts
	}
	l.status.Iterations++
	l.status.LastRun = done
	l.status.LastErrKind = kind
	if err == nil {
		l.status.LastSuccess = done
	}
	next := l.timestamp
	l.mu.Unlock()

	l.metrics.ObservePoll(result, kind, done.Sub(start), done)
	l.metrics.SetFromDate(next)
}

func (l *Loop) safePoll(ctx context.Context, from int64, log logx.Logger) (empty bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("panic: %v", r), ErrIterationPanic)
			log.Error("poll panic recovered", logx.Stack(string(debug.Stack())))
		}
	}()
	return l.poll(ctx, from, log)
}

// Poll performs one fetch → validate → format → send pass for statuses
// changed since from. It does not touch the loop's timestamp.
func (l *Loop) Poll(ctx context.Context, from int64) error {
	_, err := l.poll(ctx, from, l.log)
	return err
}

// poll reports empty=true when the response held no records.
func (l *Loop) poll(ctx context.Context, from int64, log logx.Logger) (empty bool, err error) {
	resp, err := l.fetch.Fetch(ctx, from)
	if err != nil {
		return false, err
	}
	records, err := homework.Extract(resp)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		log.Debug("no new homework statuses", logx.Int64("from_date", from))
		return true, nil
	}

	// The API returns newest first; only the latest status is reported.
	text, err := homework.FormatStatus(records[0])
	if err != nil {
		return false, err
	}
	log.Debug("homework status changed", logx.Int("records", len(records)))
	l.notify.Send(ctx, text)
	return false, nil
}

// ErrorKind maps an iteration error to a short stable label for logs and
// metrics. nil maps to "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIterationPanic):
		return "panic"
	case errors.Is(err, practicum.ErrUnreachableEndpoint):
		return "unreachable_endpoint"
	case errors.Is(err, practicum.ErrFetchFailure):
		return "fetch_failure"
	case errors.Is(err, homework.ErrMissingKeys):
		return "missing_keys"
	case errors.Is(err, homework.ErrMissingField):
		return "missing_field"
	case errors.Is(err, homework.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, homework.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}
