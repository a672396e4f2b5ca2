package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"reviewbot/internal/observability/metrics"
	"reviewbot/internal/storage"
	kit "reviewbot/internal/transport"
	logx "reviewbot/pkg/logx"
)

// ErrNotifyFailure marks every delivery error the service logs.
var ErrNotifyFailure = errors.New("notify failure")

// Service sends text to one chat. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender  kit.Sender
	target  kit.ChatTarget
	store   storage.Store
	metrics *metrics.Metrics
	log     logx.Logger
	now     func() time.Time

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds the service. store and m may be nil.
func New(cfg Config, sender kit.Sender, target kit.ChatTarget, store storage.Store, m *metrics.Metrics, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender:  sender,
		target:  target,
		store:   store,
		metrics: m,
		log:     log.With(logx.String("chat", target.String())),
		now:     time.Now,
		dedup:   map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Target() kit.ChatTarget { return s.target }

// Apply swaps delivery policy at runtime (config hot reload).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}

	// Keep tokens already earned when only unrelated knobs change.
	if s.limiter == nil || s.cfg.RatePerSec != cfg.RatePerSec {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	s.cfg = cfg
}

// Send delivers text to the configured chat. Failures are logged and
// swallowed.
func (s *Service) Send(ctx context.Context, text string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if text == "" {
		s.log.Debug("empty message skipped")
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	start := s.now()
	key := dedupKey(s.target, text)
	if cfg.DedupWindow > 0 && s.suppressed(ctx, key, cfg) {
		s.log.Debug("duplicate message suppressed", logx.String("text", text), logx.Duration("window", cfg.DedupWindow))
		s.record(ctx, storage.Delivery{Outcome: storage.OutcomeDeduped, Text: text}, 0)
		return
	}

	ref, attempts, err := s.deliver(ctx, cfg, lim, text)
	took := s.now().Sub(start)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "send message to %s", s.target), ErrNotifyFailure)
		s.log.Error("failed to send message",
			logx.String("text", text),
			logx.Int("attempts", attempts),
			logx.Err(err),
		)
		s.record(ctx, storage.Delivery{Outcome: storage.OutcomeFailed, Attempts: attempts, Text: text, Error: err.Error()}, took)
		return
	}

	s.log.Info("message sent", logx.String("text", text), logx.Int("message_id", ref.MessageID))
	s.appendHistory(text, ref.MessageID)
	if cfg.DedupWindow > 0 {
		s.remember(ctx, key, cfg)
	}
	s.record(ctx, storage.Delivery{Outcome: storage.OutcomeSent, Attempts: attempts, MessageID: ref.MessageID, Text: text}, took)
}

func (s *Service) deliver(ctx context.Context, cfg Config, lim *rate.Limiter, text string) (kit.MessageRef, int, error) {
	if s.sender == nil {
		return kit.MessageRef{}, 0, errors.New("no sender configured")
	}
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return kit.MessageRef{}, attempt - 1, errors.Wrap(err, "rate limit wait")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		ref, err := s.sender.SendText(callCtx, s.target, text, &kit.SendOptions{DisablePreview: true})
		cancel()
		if err == nil {
			return ref, attempt, nil
		}
		lastErr = err
		if attempt >= maxAttempts {
			return kit.MessageRef{}, attempt, lastErr
		}
		s.log.Debug("send attempt failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return kit.MessageRef{}, attempt, errors.CombineErrors(lastErr, ctx.Err())
		}
	}
	return kit.MessageRef{}, maxAttempts, lastErr
}

func (s *Service) record(ctx context.Context, d storage.Delivery, took time.Duration) {
	s.metrics.ObserveNotification(d.Outcome, took)
	if s.store == nil {
		return
	}
	d.At = s.now()
	d.Target = s.target.String()
	d.ThreadID = s.target.ThreadID
	d.TookMS = took.Milliseconds()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.store.AppendDelivery(cctx, d); err != nil {
		s.log.Warn("delivery journal append failed", logx.Err(err))
	}
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(text string, id int) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.now(), Text: text, MessageID: id})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()
}

func dedupKey(to kit.ChatTarget, text string) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s:%d|", to.String(), to.ThreadID)
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

// suppressed reports whether key is inside an active dedup window, checking
// memory first and then the store when persistence is on.
func (s *Service) suppressed(ctx context.Context, key string, cfg Config) bool {
	now := s.now()

	s.dmu.Lock()
	until, ok := s.dedup[key]
	s.dmu.Unlock()
	if ok && now.Before(until) {
		return true
	}

	if !cfg.PersistDedup || s.store == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	until, ok, err := s.store.GetDedup(cctx, key)
	cancel()
	if err != nil {
		s.log.Debug("dedup lookup failed", logx.Err(err))
		return false
	}
	if ok && now.Before(until) {
		s.dmu.Lock()
		s.dedup[key] = until
		s.dmu.Unlock()
		return true
	}
	return false
}

// remember opens a new dedup window for key after a successful send.
func (s *Service) remember(ctx context.Context, key string, cfg Config) {
	now := s.now()
	until := now.Add(cfg.DedupWindow)

	s.dmu.Lock()
	s.dedup[key] = until
	for k, t := range s.dedup {
		if !now.Before(t) {
			delete(s.dedup, k)
		}
	}
	// Over the cap: drop the entries that expire first.
	for len(s.dedup) > cfg.DedupMaxEntries {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	s.dmu.Unlock()

	if cfg.PersistDedup && s.store != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
		if err := s.store.PutDedup(cctx, key, until); err != nil {
			s.log.Debug("dedup persist failed", logx.Err(err))
		}
		cancel()
	}
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	// Exponential backoff: base * 2^(attempt-1)
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > maxD {
		d = maxD
	}
	return d
}
