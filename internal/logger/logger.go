package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"potholytics/internal/config"

	"github.com/lmittmann/tint"
	"go.uber.org/multierr"
)

// Logger provides leveled logging (debug/info/warning/error) to files and the console.
type Logger struct {
	console    *slog.Logger
	infoLog    *slog.Logger
	warningLog *slog.Logger
	errorLog   *slog.Logger
	logDir     string
	files      []*os.File
}

// NewLogger creates a Logger from the configuration and ensures the log directory exists.
func NewLogger(cfg *config.Config) *Logger {
	l, err := New(cfg.LogDirectory, parseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	return l
}

// New creates a Logger writing per-level files into logDir.
func New(logDir string, level slog.Level) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}
	l.console = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))

	var err error
	if l.infoLog, err = l.fileLogger("info.log"); err == nil {
		if l.warningLog, err = l.fileLogger("warning.log"); err == nil {
			l.errorLog, err = l.fileLogger("error.log")
		}
	}
	if err != nil {
		return nil, multierr.Append(err, l.Close())
	}

	return l, nil
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	nop := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Logger{console: nop, infoLog: nop, warningLog: nop, errorLog: nop}
}

// fileLogger opens or creates a log file for appending.
func (l *Logger) fileLogger(name string) (*slog.Logger, error) {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	l.files = append(l.files, file)
	return slog.New(slog.NewTextHandler(file, nil)), nil
}

// Debug writes a formatted debug-level entry to the console only.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.console.Debug(fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.console.Info(msg)
	l.infoLog.Info(msg)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.console.Warn(msg)
	l.warningLog.Warn(msg)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.console.Error(msg)
	l.errorLog.Error(msg)
}

// Dir returns the directory holding the per-level log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	var err error
	for _, f := range l.files {
		err = multierr.Append(err, f.Close())
	}
	l.files = nil
	return err
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
