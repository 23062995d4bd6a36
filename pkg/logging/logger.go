package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for wisplogin components.
// Entries go to stderr and, when the log directory is usable, to a
// run-specific file in ~/.wisplogin/logs/.
type Logger struct {
	sessionID string
	component string
	sugar     *zap.SugaredLogger
	file      *os.File
	logPath   string
	closeOnce sync.Once
}

var (
	// Global session ID for the current run
	sessionID     string
	sessionIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	// level is shared by every logger created after SetLevel
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// getSessionID returns or creates the session ID for this run
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir != "" {
			initErr = os.MkdirAll(logDir, 0750)
			return
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		logDir = filepath.Join(homeDir, ".wisplogin", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// SetLevel changes the minimum level for all loggers. Unknown names keep
// the current level and return an error.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = nil
	cfg.CallerKey = ""
	return cfg
}

// NewLogger creates a new logger for a specific component.
// The file sink is ~/.wisplogin/logs/<session-id>-wisplogin.log.
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a stderr-only logger along with the error.
func NewLogger(component string) (*Logger, error) {
	stderrCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)

	if err := initLogDirectory(); err != nil {
		return newLogger(component, stderrCore, nil, ""), err
	}

	sessID := getSessionID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-wisplogin.log", sessID))

	// Append mode: every component shares the run's file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newLogger(component, stderrCore, nil, ""), fmt.Errorf("failed to open log file: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		level,
	)

	return newLogger(component, zapcore.NewTee(stderrCore, fileCore), file, logPath), nil
}

func newLogger(component string, core zapcore.Core, file *os.File, logPath string) *Logger {
	sessID := getSessionID()
	base := zap.New(core).Named(component).With(zap.String("session", sessID))
	return &Logger{
		sessionID: sessID,
		component: component,
		sugar:     base.Sugar(),
		file:      file,
		logPath:   logPath,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		component: "nop",
		sugar:     zap.NewNop().Sugar(),
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		sessionID: l.sessionID,
		component: l.component,
		sugar:     l.sugar.With(keysAndValues...),
		logPath:   l.logPath,
	}
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close flushes buffered entries and closes the log file. Safe to call
// multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.sugar.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
