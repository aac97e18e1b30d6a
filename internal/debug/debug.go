package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/pricematch/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// QuietMode suppresses all debug output, including fatal messages.
var QuietMode = false

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetQuietMode enables or disables quiet mode
func SetQuietMode(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	QuietMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file in the
// temp directory and returns its path. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "pricematch-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is enabled and quiet mode is off
func IsDebugEnabled() bool {
	if isQuiet() {
		return false
	}

	if EnableDebug == "true" {
		return true
	}

	for _, key := range []string{"PRICEMATCH_DEBUG", "DEBUG"} {
		if v := os.Getenv(key); v == "1" || v == "true" {
			return true
		}
	}
	return false
}

func isQuiet() bool {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return QuietMode
}

// getDebugWriter returns the writer for debug output, or nil if none is configured
func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

func write(prefix, msg string) {
	w := getDebugWriter()
	if w == nil {
		return
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	debugMutex.Lock()
	defer debugMutex.Unlock()
	fmt.Fprint(w, prefix+msg)
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	write("[DEBUG] ", fmt.Sprintf(format, args...))
}

// Log provides structured debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	write("[DEBUG:"+component+"] ", fmt.Sprintf(format, args...))
}

// LogMatch logs resolver and ranking decisions
func LogMatch(format string, args ...interface{}) {
	Log("MATCH", format, args...)
}

// LogRerank logs semantic reranker calls and degradations
func LogRerank(format string, args ...interface{}) {
	Log("RERANK", format, args...)
}

// LogLearn logs learned-correction lookups and writes
func LogLearn(format string, args ...interface{}) {
	Log("LEARN", format, args...)
}

// LogStore logs persistence failures
func LogStore(format string, args ...interface{}) {
	Log("STORE", format, args...)
}

// Warn reports a degraded operation. It needs only a configured output,
// not debug mode; QuietMode still suppresses it.
func Warn(component, format string, args ...interface{}) {
	if isQuiet() {
		return
	}
	write("[WARN:"+component+"] ", fmt.Sprintf(format, args...))
}

// Fatal writes a message to the debug log and returns it as an error.
// Callers decide whether to exit.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !isQuiet() {
		write("[FATAL] ", msg)
	}
	return fmt.Errorf("fatal error: %s", msg)
}
