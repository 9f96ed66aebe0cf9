// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// Logger writes leveled log lines to stdout and, once InitLogger has run,
// to the pipeline log file as well. All services share the one instance
// returned by GetLogger.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	level LogLevel
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the process-wide logger. Before InitLogger it logs to
// stdout only, at INFO.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{level: INFO}
	})
	return globalLogger
}

// InitLogger attaches the global logger to a log file, creating the
// directory if needed. The file is appended to across restarts.
func InitLogger(logFile string) error {
	logger := GetLogger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.file != nil {
		logger.file.Close()
	}
	logger.file = file
	return nil
}

// SetLogLevel sets the minimum severity that gets written
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	line := fmt.Sprintf("[%s] %s %s - %s",
		level.String(),
		time.Now().Format("2006-01-02 15:04:05.000"),
		callerLocation(),
		message)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		line += " |"
		for _, key := range keys {
			line += fmt.Sprintf(" %s=%v", key, fields[key])
		}
	}
	line += "\n"

	l.mu.Lock()
	if l.file != nil {
		l.file.WriteString(line)
		l.file.Sync()
	}
	os.Stdout.WriteString(line)
	l.mu.Unlock()

	if level == FATAL {
		os.Exit(1)
	}
}

// callerLocation reports the file:line of the logging call site, two
// frames above log
func callerLocation() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "?"
	}
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message with optional fields
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn logs a warning with optional fields
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error logs an error with optional fields
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs the message and exits the process
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}
