// Package common provides logging utilities for the application
package common

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// GetLogger returns a named logger entry. The name is attached as the
// "component" field so log lines can be filtered per subsystem
// (e.g. "transport/rpc", "discovery", "stream").
func GetLogger(pkgName string) *log.Entry {
	return log.StandardLogger().WithField("component", pkgName)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to a logrus level
func parseLogLevel(level string) (log.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warning", "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers configures the process-wide logger from the client configuration.
// Called once during client or CLI startup.
func InitLoggers(config ClientConfig) error {
	level, err := parseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return nil
}
