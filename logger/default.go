package logger

import (
	"os"
	"strconv"
)

// Environment variables read when the package default logger is created.
const (
	EnvLogLevel   = "GSWIFI_LOG_LEVEL"
	EnvLogConsole = "GSWIFI_LOG_CONSOLE"
)

var defLogger = newDefaultLogger()

// newDefaultLogger builds the package logger from EnvLogLevel and
// EnvLogConsole. Invalid values fall back to info level, and ENV=development
// also selects console output.
func newDefaultLogger() Logger {
	level, err := ParseLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		level = InfoLevel
	}
	console, _ := strconv.ParseBool(os.Getenv(EnvLogConsole))
	if os.Getenv("ENV") == "development" {
		console = true
	}

	return NewSlogLogger(level, WithConsole(console))
}

func Debug(msg string, keysAndValues ...any) {
	defLogger.Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	defLogger.Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	defLogger.Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defLogger.Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	defLogger.Fatal(msg, keysAndValues...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defLogger.SetLevel(level)
}

// SetLogger replaces the default logger. A nil logger is ignored.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	return defLogger
}

// With returns a child of the default logger carrying the given key-values.
func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}
