// Package server exposes /healthz, /metrics and (optionally) pprof on a
// small HTTP listener, disabled by default.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	rtsup "reviewbot/internal/runtime/supervisor"
	logx "reviewbot/pkg/logx"
)

const (
	DefaultAddr = "127.0.0.1:9464"
	pprofPrefix = "/debug/pprof/"
)

var ErrInsecureBind = errors.New("non-loopback addr requires token or allow_insecure")

// Config controls the server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool
}

// HealthFunc reports liveness details. ok=false turns /healthz into a 503.
type HealthFunc func() (ok bool, details any)

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	metrics http.Handler
	health  HealthFunc

	srv      *http.Server
	addr     string
	sup      *rtsup.Supervisor
	stopDone chan struct{}
}

// New builds the service. metrics may be nil (then /metrics is 404).
func New(cfg Config, metrics http.Handler, health HealthFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, metrics: metrics, health: health, log: log}
}

// Addr returns the bound listen address while running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reconfigure applies cfg and starts/stops/restarts the server if needed.
// Safe to call during hot-reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.sup != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.Start(ctx)
	case prev != cfg:
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		// If stopping, wait for it to finish before restarting.
		if s.stopDone != nil {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return
			}
		}
		if s.sup != nil || !s.cfg.Enabled {
			s.mu.Unlock()
			return
		}
		s.sup = rtsup.New(context.WithoutCancel(ctx),
			rtsup.WithLogger(s.log),
			// optional; never takes the bot down
			rtsup.WithCancelOnError(false),
		)
		sup := s.sup
		s.mu.Unlock()

		sup.GoRestart("http.serve", s.serveOnce,
			rtsup.WithPublishFirstError(true),
			rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		)
		return
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.sup == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	srv := s.srv
	sup := s.sup
	s.mu.Unlock()

	go func() {
		defer close(done)
		if srv != nil {
			_ = srv.Shutdown(ctx)
		}
		sup.Cancel()
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.srv = nil
		s.addr = ""
		s.sup = nil
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("observability server stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Handler builds the mux for cfg. Exposed for tests.
func (s *Service) Handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(s.serveHealth))
	if s.metrics != nil {
		mux.Handle("/metrics", wrap(s.metrics.ServeHTTP))
	}
	if cfg.Pprof {
		base := strings.TrimSuffix(pprofPrefix, "/")
		mux.HandleFunc(pprofPrefix, wrap(hpprof.Index))
		mux.HandleFunc(base+"/cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc(base+"/profile", wrap(hpprof.Profile))
		mux.HandleFunc(base+"/symbol", wrap(hpprof.Symbol))
		mux.HandleFunc(base+"/trace", wrap(hpprof.Trace))
	}
	return mux
}

func (s *Service) serveHealth(w http.ResponseWriter, _ *http.Request) {
	ok, details := true, any(nil)
	if s.health != nil {
		ok, details = s.health()
	}
	body := map[string]any{"ok": ok}
	if details != nil {
		body["details"] = details
	}
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()
	if !cur.Enabled {
		return nil
	}

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	loopback := isLoopbackAddr(addr)
	// Prevent accidental public exposure without auth.
	if !cur.AllowInsecure && cur.Token == "" && !loopback {
		s.log.Error("observability server refused to start", logx.String("addr", addr), logx.Err(ErrInsecureBind))
		// Config must change before a retry could succeed.
		return nil
	}
	if cur.AllowInsecure && cur.Token == "" && !loopback {
		s.log.Warn("observability server running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("observability listen failed", logx.String("addr", addr), logx.Err(err))
		return errors.Wrapf(err, "listen %s", addr)
	}

	srv := &http.Server{
		Handler:           s.Handler(cur),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays 0 so /debug/pprof/profile can stream 30s+.
	}

	s.mu.Lock()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("observability server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", cur.Token != ""),
		logx.Bool("pprof", cur.Pprof),
	)
	err = srv.Serve(ln)

	s.mu.Lock()
	if s.srv == srv {
		s.srv = nil
		s.addr = ""
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("observability server exited unexpectedly")
	}
	return err
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Authorization: Bearer <token>, or ?token=<token> for browsers.
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(ah[len(p):]) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
