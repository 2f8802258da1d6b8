// Package logging configures the shared logrus logger for the proxy.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupBaseLogger applies the default formatter and level before any
// configuration has been loaded.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stdout)
}

// ConfigureOutput routes log output to a rotating file when logFile is
// non-empty, otherwise leaves stdout in place. The file is rotated at 20MB
// with 5 backups kept.
func ConfigureOutput(logFile string) error {
	logFile = strings.TrimSpace(logFile)
	if logFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return nil
}

// SetDebug toggles debug-level logging at runtime.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
