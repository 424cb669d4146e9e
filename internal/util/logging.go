// Package util provides shared helper utilities.
//revive:disable:var-naming // Package name follows project convention.
package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorGray   = "\x1b[90m"
)

var verbose atomic.Bool

// SetVerbose toggles Detailf output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// SetupLogFile mirrors log output into a size-rotated file.
// The returned closer flushes and closes the file.
func SetupLogFile(path string, maxSizeMB int, maxBackups int) (io.Closer, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

// Infof logs an info message.
func Infof(format string, args ...any) {
	log.Printf("%s %s", colorize(colorGreen, "INFO"), fmt.Sprintf(format, args...))
}

// Warnf logs a warning message.
func Warnf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Highlightf logs a highlighted message.
func Highlightf(format string, args ...any) {
	log.Printf("%s %s", colorize(colorBlue, "NOTE"), fmt.Sprintf(format, args...))
}

// Detailf logs a message only in verbose mode.
func Detailf(format string, args ...any) {
	if !verbose.Load() {
		return
	}
	log.Printf("%s %s", colorize(colorGray, "DETAIL"), fmt.Sprintf(format, args...))
}

func colorize(color, msg string) string {
	return color + msg + colorReset
}
