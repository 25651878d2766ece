package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Environment variables configuring the logger.
const (
	envLogPath = "ENTITY_CACHE_LOG"
	envDebug   = "ENTITY_CACHE_DEBUG"
)

var (
	mu      sync.Mutex
	std     *log.Logger
	logFile *os.File
	debug   bool
)

// InitFromEnv initializes the logger using ENTITY_CACHE_LOG or a default path
// next to the executable. ENTITY_CACHE_DEBUG=1 enables debug output.
func InitFromEnv() error {
	path := os.Getenv(envLogPath)
	if path == "" {
		// Default to the directory where the executable is located
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "entity-cache.log")
		} else {
			path = "./entity-cache.log"
		}
	}
	SetDebug(os.Getenv(envDebug) == "1")
	return Init(path)
}

// Init initializes the logger to write to the provided file path.
// It creates parent directories if needed and opens the file in append mode.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	return nil
}

// SetDebug toggles Debugf output.
func SetDebug(on bool) {
	mu.Lock()
	debug = on
	mu.Unlock()
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	std = nil
	return err
}

// Debugf logs verbose diagnostics; dropped unless debug is enabled.
func Debugf(format string, args ...any) { write("DEBUG", format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write("INFO", format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write("WARN", format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write("ERROR", format, args...) }

// write goes to the log file once Init has run. Before that, warnings and
// errors go to stderr and everything else is dropped; stdout is never used
// since the MCP server speaks its protocol there.
func write(level string, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level == "DEBUG" && !debug {
		return
	}
	msg := fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...))
	if std != nil {
		std.Print(msg)
		return
	}
	if level == "WARN" || level == "ERROR" {
		fmt.Fprintln(os.Stderr, msg)
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
