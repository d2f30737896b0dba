package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/phsym/console-slog"
)

// SlogLogger is a Logger backed by log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var _ Logger = (*SlogLogger)(nil)

type slogSettings struct {
	output    io.Writer
	addSource bool
	console   bool
}

// SlogOption customizes a SlogLogger created by NewSlogLogger.
type SlogOption func(*slogSettings)

// WithOutput sets the destination of log records. Defaults to os.Stdout.
func WithOutput(w io.Writer) SlogOption {
	return func(s *slogSettings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(enabled bool) SlogOption {
	return func(s *slogSettings) { s.addSource = enabled }
}

// WithConsole selects the human readable console handler instead of JSON.
func WithConsole(enabled bool) SlogOption {
	return func(s *slogSettings) { s.console = enabled }
}

// NewSlog creates a slog based logger writing to stdout.
//
// The console handler is used when the ENV environment variable equals
// "development", JSON otherwise.
func NewSlog(level Level, addSource bool) Logger {
	return NewSlogLogger(level,
		WithSource(addSource),
		WithConsole(os.Getenv("ENV") == "development"),
	)
}

// NewSlogLogger creates a slog based logger with the given options.
func NewSlogLogger(level Level, opts ...SlogOption) *SlogLogger {
	settings := &slogSettings{output: os.Stdout}
	for _, opt := range opts {
		opt(settings)
	}

	inst := &SlogLogger{level: &slog.LevelVar{}}
	inst.level.Set(toSlogLevel(level))

	var handler slog.Handler
	if settings.console {
		handler = console.NewHandler(settings.output, &console.HandlerOptions{
			AddSource: settings.addSource,
			Level:     inst.level,
		})
	} else {
		handler = slog.NewJSONHandler(settings.output, &slog.HandlerOptions{
			AddSource: settings.addSource,
			Level:     inst.level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	}
	inst.logger = slog.New(handler)

	return inst
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues...)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues...)
	os.Exit(1)
}

// With returns a child logger sharing the parent's level.
func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(keyValues...),
		level:  l.level,
	}
}

func (l *SlogLogger) Level() Level {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelInfo:
		return InfoLevel
	case slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(toSlogLevel(level))
}

// log must always be called directly by an exported logging method,
// because it uses a fixed call depth to obtain the pc.
func (l *SlogLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
