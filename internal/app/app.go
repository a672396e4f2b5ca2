// Package app wires the poll loop, its collaborators and the supporting
// services, and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"reviewbot/internal/config"
	"reviewbot/internal/notifier"
	"reviewbot/internal/observability/metrics"
	"reviewbot/internal/observability/server"
	"reviewbot/internal/poller"
	"reviewbot/internal/practicum"
	"reviewbot/internal/runtime/supervisor"
	"reviewbot/internal/storage"
	kit "reviewbot/internal/transport"
	telegram "reviewbot/internal/transport/telegram/adapter"
	logx "reviewbot/pkg/logx"
	"reviewbot/pkg/systemd"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// iterationSlack is added to the scheduled wait when judging liveness.
const iterationSlack = 2 * time.Minute

type App struct {
	cfgm *config.Manager

	sup  *supervisor.Supervisor
	log  logx.Logger
	logs *logx.Service

	tg      *telegram.Adapter
	store   storage.Store
	metrics *metrics.Metrics
	notif   *notifier.Service
	loop    *poller.Loop
	obs     *server.Service
	sd      *systemd.Notifier

	// aliveUntil is the unix-nano deadline for the next loop heartbeat.
	aliveUntil atomic.Int64

	stopOnce sync.Once
}

type Option func(*options)

type options struct {
	sender  kit.Sender
	fetcher poller.Fetcher
	timer   func(time.Duration) <-chan time.Time
}

// WithSender replaces the Telegram adapter.
func WithSender(s kit.Sender) Option { return func(o *options) { o.sender = s } }

// WithFetcher replaces the review API client.
func WithFetcher(f poller.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithPollTimer replaces time.After for the loop's wait.
func WithPollTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(o *options) { o.timer = after }
}

// New loads the settings file through cfgm and builds every component.
// creds must already be validated.
func New(ctx context.Context, creds config.Credentials, cfgm *config.Manager, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validateSettings(cfg) })
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	target, err := creds.ChatTarget()
	if err != nil {
		return nil, err
	}
	target.ThreadID = cfg.Telegram.ThreadID

	var tg *telegram.Adapter
	sender := o.sender
	if sender == nil {
		tc, err := mapTelegramConfig(cfg, creds.TelegramToken)
		if err != nil {
			return nil, err
		}
		ad, err := telegram.New(tc, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		tg, sender = ad, ad
	}

	fetcher := o.fetcher
	if fetcher == nil {
		pc, err := mapPracticumConfig(cfg, creds.PracticumToken)
		if err != nil {
			return nil, err
		}
		api, err := practicum.New(pc, log.With(logx.String("comp", "practicum")))
		if err != nil {
			return nil, errors.Mark(err, config.ErrConfigInvalid)
		}
		fetcher = api
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	m := metrics.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	notif := notifier.New(ncfg, sender, target, store, m, log.With(logx.String("comp", "notifier")))

	sched, err := mapSchedule(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		tg:      tg,
		store:   store,
		metrics: m,
		notif:   notif,
		sd:      systemd.New(log.With(logx.String("comp", "systemd"))),
	}

	loopOpts := []poller.Option{poller.WithHeartbeat(a.beat)}
	if o.timer != nil {
		loopOpts = append(loopOpts, poller.WithTimer(o.timer))
	}
	a.loop = poller.New(fetcher, notif, sched, m, log.With(logx.String("comp", "poller")), loopOpts...)
	a.obs = server.New(mapObservabilityConfig(cfg), m.Handler(), a.health, log.With(logx.String("comp", "observability")))

	log.Info("reviewbot configured",
		logx.String("version", Version),
		logx.String("settings", cfgm.Path()),
		logx.String("chat", notif.Target().String()),
		logx.String("schedule", sched.String()),
	)
	return a, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Loop exposes the poll loop (status, tests).
func (a *App) Loop() *poller.Loop { return a.loop }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.extendAlive()

	a.sup.Go("poller", a.loop.Run)

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.apply(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.tg != nil {
		a.sup.Go0("telegram.check", func(context.Context) { a.checkTelegram() })
	}
	a.obs.Start(a.sup.Context())

	if wd := systemd.WatchdogInterval(); wd > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) { a.watchdog(c, wd/2) })
	}
	if a.sd.Ready() {
		a.log.Debug("systemd notified ready")
	}
	a.log.Info("app started")
	return nil
}

// checkTelegram verifies the bot token once. A failure is logged at warn
// and leaves the app running.
func (a *App) checkTelegram() {
	name, err := a.tg.CheckToken()
	if err != nil {
		a.log.Warn("telegram token check failed", logx.Err(err))
		return
	}
	a.log.Info("telegram bot ready", logx.String("username", name))
}

// apply pushes a committed settings reload into the live components.
func (a *App) apply(ctx context.Context, prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	if err := a.logs.Apply(mapLogConfig(next)); err != nil {
		a.log.Warn("log file unavailable; console only", logx.Err(err))
	}

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	if sched, err := mapSchedule(next); err != nil {
		a.log.Warn("invalid poll schedule; keeping previous", logx.Err(err))
	} else {
		a.loop.SetSchedule(sched)
	}
	a.obs.Reconfigure(ctx, mapObservabilityConfig(next))

	if len(restart) > 0 {
		a.log.Warn("config change requires restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// beat runs after every loop iteration.
func (a *App) beat() {
	a.extendAlive()
	if a.sd == nil {
		return
	}
	a.sd.Watchdog()
	st := a.loop.Status()
	msg := fmt.Sprintf("polls=%d from_date=%d", st.Iterations, st.Timestamp)
	if st.LastErrKind != "" {
		msg += " last_error=" + st.LastErrKind
	}
	a.sd.Status(msg)
}

func (a *App) extendAlive() {
	now := time.Now()
	wait := a.loop.NextWait(now)
	a.aliveUntil.Store(now.Add(wait + iterationSlack).UnixNano())
}

func (a *App) alive(now time.Time) bool {
	return now.UnixNano() <= a.aliveUntil.Load()
}

// watchdog keeps pinging systemd during long waits as long as the loop is
// not overdue. A stuck iteration stops the pings.
func (a *App) watchdog(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if a.alive(now) {
				a.sd.Watchdog()
			} else {
				a.log.Warn("poll loop overdue; withholding watchdog ping")
			}
		}
	}
}

type healthDetails struct {
	Loop       poller.Status          `json:"loop"`
	Supervisor supervisor.Snapshot    `json:"supervisor"`
	Recent     []notifier.HistoryItem `json:"recent,omitempty"`
}

func (a *App) health() (bool, any) {
	d := healthDetails{Loop: a.loop.Status(), Recent: lastN(a.notif.Snapshot(), 5)}
	ok := a.alive(time.Now())
	if a.sup != nil {
		d.Supervisor = a.sup.Snapshot()
		ok = ok && a.sup.Err() == nil
	}
	return ok, d
}

func lastN[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}

// Stop shuts everything down, each step bounded so one component cannot
// stall the rest. An in-flight poll iteration is allowed to finish.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.stopOnce.Do(func() { a.stop(ctx) })
	return nil
}

func (a *App) stop(ctx context.Context) {
	a.log.Info("stopping")
	a.sd.Stopping()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- errors.Newf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("observability", time.Second, func(c context.Context) error { a.obs.Stop(c); return nil })
	// waits for the current iteration: fetch and send timeouts bound it
	step("supervisor", 90*time.Second, a.sup.Stop)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
