package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the log directory at a temp dir and resets global state
func setupTestDir(t *testing.T) (cleanup func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "wisplogin-logging-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	origLogDir := logDir
	origSessionID := sessionID

	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	return func() {
		logDir = origLogDir
		initErr = nil
		initOnce = sync.Once{}
		sessionID = origSessionID
		sessionIDOnce = sync.Once{}
		_ = SetLevel("info")

		os.RemoveAll(tempDir)
	}
}

func readLog(t *testing.T, l *Logger) string {
	t.Helper()
	if err := l.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
	content, err := os.ReadFile(l.logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewLogger(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test-component")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.component)
	}

	if logger.sessionID == "" {
		t.Error("Expected non-empty session ID")
	}

	if _, err := os.Stat(logger.logPath); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.logPath)
	}
}

func TestLoggerLevels(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debugf("Debug message")
	logger.Infof("Info message %d", 123)
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	logContent := readLog(t, logger)

	expectedPatterns := []string{
		`"level":"debug"`,
		`"msg":"Debug message"`,
		`"msg":"Info message 123"`,
		`"level":"warn"`,
		`"level":"error"`,
		`"logger":"test"`,
	}

	for _, pattern := range expectedPatterns {
		if !strings.Contains(logContent, pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, logContent)
		}
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}

	logger, err := NewLogger("filtered")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infof("should be dropped")
	logger.Warnf("should be kept")

	logContent := readLog(t, logger)
	if strings.Contains(logContent, "should be dropped") {
		t.Errorf("Info entry written at warn level:\n%s", logContent)
	}
	if !strings.Contains(logContent, "should be kept") {
		t.Errorf("Warn entry missing:\n%s", logContent)
	}
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestMultipleComponents(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger1, err := NewLogger("component1")
	if err != nil {
		t.Fatalf("Failed to create logger1: %v", err)
	}

	logger2, err := NewLogger("component2")
	if err != nil {
		t.Fatalf("Failed to create logger2: %v", err)
	}

	// Same run, same file
	if logger1.sessionID != logger2.sessionID {
		t.Errorf("Expected same session ID, got %q and %q", logger1.sessionID, logger2.sessionID)
	}

	if logger1.logPath != logger2.logPath {
		t.Errorf("Expected same log path, got %q and %q", logger1.logPath, logger2.logPath)
	}

	logger1.Infof("Message from component1")
	logger2.Infof("Message from component2")
	_ = logger2.Close()

	logContent := readLog(t, logger1)

	if !strings.Contains(logContent, `"logger":"component1"`) {
		t.Error("Log missing component1 entries")
	}
	if !strings.Contains(logContent, `"logger":"component2"`) {
		t.Error("Log missing component2 entries")
	}
}

func TestWithAddsFields(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("fields")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.With("account", "abc****@x.com").Infof("attempt started")

	logContent := readLog(t, logger)
	if !strings.Contains(logContent, `"account":"abc****@x.com"`) {
		t.Errorf("Expected account field in log:\n%s", logContent)
	}
}

func TestGetSessionID(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	id1 := GetSessionID()
	id2 := GetSessionID()

	if id1 != id2 {
		t.Errorf("Expected consistent session ID, got %q and %q", id1, id2)
	}

	if id1 == "" {
		t.Error("Expected non-empty session ID")
	}
}

func TestGetLogDirectory(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	dir, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("Failed to get log directory: %v", err)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Log directory does not exist or is not a directory: %s", dir)
	}
}

func TestLoggerClose(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestLogPathFormat(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	fileName := filepath.Base(logger.logPath)
	if !strings.HasSuffix(fileName, "-wisplogin.log") {
		t.Errorf("Expected log file to end with '-wisplogin.log', got %q", fileName)
	}

	sessionPart := strings.TrimSuffix(fileName, "-wisplogin.log")
	if !strings.Contains(sessionPart, "-") {
		t.Errorf("Expected session ID part to contain dashes (UUID format), got %q", sessionPart)
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Infof("ignored %s", "value")
	if err := logger.Close(); err != nil {
		t.Errorf("Nop close failed: %v", err)
	}
}
