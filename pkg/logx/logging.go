package logx

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// DefaultFilePath is used when file logging is on without a path.
const DefaultFilePath = "./reviewbot.log"

type Level = zerolog.Level

const (
	LevelTrace    = zerolog.TraceLevel
	LevelDebug    = zerolog.DebugLevel
	LevelInfo     = zerolog.InfoLevel
	LevelWarn     = zerolog.WarnLevel
	LevelError    = zerolog.ErrorLevel
	LevelCritical = zerolog.FatalLevel
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field adds one key to an event. Later fields overwrite earlier ones with
// the same key.
type Field func(e *zerolog.Event)

func String(k, v string) Field                 { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field                { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field            { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Bool(k string, v bool) Field              { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field { return func(e *zerolog.Event) { e.Dur(k, v) } }
func Any(k string, v any) Field                { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Err is a no-op for nil errors.
func Err(err error) Field {
	if err == nil {
		return nil
	}
	return func(e *zerolog.Event) { e.Err(err) }
}

// Stack is a no-op for a blank stack.
func Stack(stack string) Field {
	if strings.TrimSpace(stack) == "" {
		return nil
	}
	return String("stack", stack)
}

// Logger writes structured events. A Logger taken from a Service follows
// its Apply calls. The zero value discards everything.
type Logger struct {
	svc    *Service
	fixed  *zerolog.Logger
	fields []Field
}

func fixed(zl zerolog.Logger) Logger { return Logger{fixed: &zl} }

// Nop returns a logger that never writes anything.
func Nop() Logger { return fixed(zerolog.Nop()) }

// NewConsole is a standalone stdout logger for use before settings load.
func NewConsole(level string) Logger { return NewConsoleTo(Stdout(), level) }

// NewConsoleTo is NewConsole writing to w.
func NewConsoleTo(w io.Writer, level string) Logger {
	if w == nil {
		w = Stdout()
	}
	return fixed(build(consoleSink(w), parseLevel(level, LevelInfo)))
}

// NewWriter logs JSON lines to w, mostly so tests can read them back.
func NewWriter(w io.Writer, level string) Logger {
	return fixed(build(w, parseLevel(level, LevelTrace)))
}

func (l Logger) IsZero() bool { return l.svc == nil && l.fixed == nil && len(l.fields) == 0 }

func (l Logger) root() zerolog.Logger {
	switch {
	case l.svc != nil:
		return *l.svc.root.Load()
	case l.fixed != nil:
		return *l.fixed
	}
	return zerolog.Nop()
}

// Enabled reports whether the given level would be logged.
func (l Logger) Enabled(level Level) bool { return level >= l.root().GetLevel() }

func (l Logger) With(fields ...Field) Logger {
	if len(fields) > 0 {
		l.fields = append(append([]Field(nil), l.fields...), fields...)
	}
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.write(LevelTrace, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// Critical is logged at zerolog's fatal level but never exits.
func (l Logger) Critical(msg string, fields ...Field) { l.write(LevelCritical, msg, fields) }

// write must be called directly from the level methods; the caller frame
// depends on it.
func (l Logger) write(level Level, msg string, fields []Field) {
	zl := l.root()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

// Service owns the process log sinks and swaps them on Apply.
type Service struct {
	root atomic.Pointer[zerolog.Logger]
	out  io.Writer

	mu   sync.Mutex
	file *os.File
}

// New builds the service on stdout and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) { return NewTo(Stdout(), cfg) }

// NewTo is New with an explicit console writer. A log file that cannot be
// opened is reported through the returned logger.
func NewTo(out io.Writer, cfg Config) (*Service, Logger) {
	if out == nil {
		out = Stdout()
	}
	s := &Service{out: out}
	log := Logger{svc: s}
	if err := s.Apply(cfg); err != nil {
		log.Warn("log file unavailable; console only", Err(err))
	}
	return s, log
}

// Apply replaces level and sinks. If the file sink cannot be opened the
// console sink stays on and the error is returned.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleSink(s.out))
	}
	var err error
	if cfg.File.Enabled {
		var f *os.File
		if f, err = openLogFile(cfg.File.Path); err == nil {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleSink(s.out))
	}

	zl := build(zerolog.MultiLevelWriter(sinks...), parseLevel(cfg.Level, LevelInfo))
	s.root.Store(&zl)
	return err
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFilePath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	return f, errors.Wrapf(err, "open log file %s", path)
}

var globalsOnce sync.Once

func build(w io.Writer, lvl Level) zerolog.Logger {
	globalsOnce.Do(func() {
		zerolog.TimeFieldFormat = timeFormat
		zerolog.ErrorFieldName = "err"
		zerolog.LevelFatalValue = "critical"
	})
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func consoleSink(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		NoColor:      true,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

var levelNames = map[string]Level{
	"TRACE":    LevelTrace,
	"DEBUG":    LevelDebug,
	"INFO":     LevelInfo,
	"WARN":     LevelWarn,
	"WARNING":  LevelWarn,
	"ERROR":    LevelError,
	"CRITICAL": LevelCritical,
	"FATAL":    LevelCritical,
}

// ParseLevel maps a config string to a level, falling back to def.
func ParseLevel(s string, def Level) Level { return parseLevel(s, def) }

func parseLevel(s string, def Level) Level {
	if lvl, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return def
}

// Stdout returns the configured stdout sink.
func Stdout() io.Writer { return os.Stdout }
