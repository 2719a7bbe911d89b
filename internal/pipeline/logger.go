package pipeline

import (
	"fmt"
	"io"
	"log"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger is a leveled wrapper over the standard logger, timestamping
// each line in RFC3339.
type Logger struct {
	logger *log.Logger
	level  LogLevel
}

func NewLogger(w io.Writer, level LogLevel) *Logger {
	return &Logger{logger: log.New(w, "", 0), level: level}
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s %s plan: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LogLevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LogLevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LogLevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LogLevelError, format, args...) }
