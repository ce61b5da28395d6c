package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/snapetech/strmsync/internal/safeurl"
)

// DefaultLogger writes through a zerolog console logger. Fields set with With are
// attached to every line.
type DefaultLogger struct {
	mu      sync.RWMutex
	zl      zerolog.Logger
	safe    bool
	secrets []string
}

var Default = New(os.Stdout)

// New returns a logger at info level with credential redaction enabled.
func New(out io.Writer) *DefaultLogger {
	return &DefaultLogger{
		zl:   zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}).With().Timestamp().Logger().Level(zerolog.InfoLevel),
		safe: true,
	}
}

// Configure sets the level ("debug", "info", "warn", "error"), whether credentials are
// redacted, and the provider secrets to mask.
func (l *DefaultLogger) Configure(level string, safe bool, secrets ...string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Level(lvl)
	l.safe = safe
	l.secrets = append([]string(nil), secrets...)
}

// With returns a child logger that tags every line with key=value.
func (l *DefaultLogger) With(key, value string) *DefaultLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &DefaultLogger{
		zl:      l.zl.With().Str(key, value).Logger(),
		safe:    l.safe,
		secrets: l.secrets,
	}
}

func (l *DefaultLogger) clean(s string) string {
	if !l.safe {
		return s
	}
	return safeurl.Redact(s, l.secrets...)
}

func (l *DefaultLogger) emit(ev *zerolog.Event, msg string) {
	ev.Msg(l.clean(msg))
}

func (l *DefaultLogger) Log(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.emit(l.zl.Info(), msg)
}

func (l *DefaultLogger) Logf(format string, v ...any) {
	l.Log(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.emit(l.zl.Warn(), msg)
}

func (l *DefaultLogger) Warnf(format string, v ...any) {
	l.Warn(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Debug(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.emit(l.zl.Debug(), msg)
}

func (l *DefaultLogger) Debugf(format string, v ...any) {
	l.mu.RLock()
	enabled := l.zl.GetLevel() <= zerolog.DebugLevel
	l.mu.RUnlock()
	if !enabled {
		return
	}
	l.Debug(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Error(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.emit(l.zl.Error(), msg)
}

func (l *DefaultLogger) Errorf(format string, v ...any) {
	l.Error(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Fatal(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.emit(l.zl.Fatal(), msg)
}

func (l *DefaultLogger) Fatalf(format string, v ...any) {
	l.Fatal(fmt.Sprintf(format, v...))
}
