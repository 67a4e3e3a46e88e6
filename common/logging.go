package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Swappable in tests; FatalLog must not kill the test binary.
var (
	logDest io.Writer = os.Stdout
	exitFn            = os.Exit
)

// Log levels for hierarchical logging
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var logLevels = map[string]int{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
	"fatal": LevelFatal,
}

// shouldLog determines if a message at the given level should be logged
func shouldLog(level string) bool {
	currentLevel := Env("COOKBOOK_LOG_LEVEL", "info")

	currentLevelNum, ok1 := logLevels[strings.ToLower(currentLevel)]
	targetLevelNum, ok2 := logLevels[strings.ToLower(level)]

	if !ok1 || !ok2 {
		return true
	}

	return targetLevelNum >= currentLevelNum
}

// logOutput handles both text and JSON output based on COOKBOOK_LOG_FORMAT
func logOutput(level string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	// Ensure no secrets are accidentally logged
	message = sanitizeForLogging(message)

	if Env("COOKBOOK_LOG_FORMAT", "text") == "json" {
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"level":     strings.ToLower(level),
			"message":   message,
		}
		if jsonBytes, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(logDest, string(jsonBytes))
		} else {
			fmt.Fprintf(logDest, "%s: %s\n", level, message)
		}
	} else {
		fmt.Fprintf(logDest, "%s/%s %s: %s\n",
			time.Now().Format("2006/01/02"),
			time.Now().Format("15:04:05"),
			level, message)
	}
}

// DebugLog logs debug messages only if log level allows it
func DebugLog(format string, args ...interface{}) {
	if shouldLog("debug") {
		logOutput("DEBUG", format, args...)
	}
}

// InfoLog logs info messages only if log level allows it
func InfoLog(format string, args ...interface{}) {
	if shouldLog("info") {
		logOutput("INFO", format, args...)
	}
}

// WarnLog logs warning messages only if log level allows it
func WarnLog(format string, args ...interface{}) {
	if shouldLog("warn") {
		logOutput("WARN", format, args...)
	}
}

// ErrorLog logs error messages only if log level allows it
func ErrorLog(format string, args ...interface{}) {
	if shouldLog("error") {
		logOutput("ERROR", format, args...)
	}
}

// FatalLog logs fatal messages and exits (always shown). Fatal errors
// often carry config values, so they go through the sanitizing path
// like every other level.
func FatalLog(format string, args ...interface{}) {
	logOutput("FATAL", format, args...)
	exitFn(1)
}

// LogCommandOutput logs command output line by line at debug level.
func LogCommandOutput(prefix string, output []byte) {
	if !shouldLog("debug") {
		return
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	maxLines := 20
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], fmt.Sprintf("... %d more lines truncated ...", len(lines)-maxLines))
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			DebugLog("%s: %s", prefix, line)
		}
	}
}

// sanitizeForLogging removes known secret values from a string before logging
func sanitizeForLogging(line string) string {
	protectedEnvVars := []string{
		"DB_ROOT_PASSWORD",
		"DB_PASSWORD",
		"SECRET_KEY",
		"MYSQL_PASSWORD",
		"MYSQL_ROOT_PASSWORD",
	}

	for _, envVar := range protectedEnvVars {
		if value := os.Getenv(envVar); value != "" && value != "true" && value != "false" {
			line = strings.ReplaceAll(line, value, "***REDACTED***")
		}
		fileVar := envVar + "_FILE"
		if fileContent := os.Getenv(fileVar); fileContent != "" {
			line = strings.ReplaceAll(line, fileContent, "***REDACTED***")
		}
	}

	return line
}
