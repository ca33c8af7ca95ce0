package logging

import (
	"fmt"
	"os"
	"sync"
)

var (
	globalMu sync.RWMutex
	global   Logger
)

// Setup builds the process logger from the LOG_* settings, installs it as the
// global logger and returns a flush function for shutdown. An empty file
// logs to stdout.
func Setup(level, format, file string) (Logger, func(), error) {
	opts := Options{Level: level, Format: format}

	var f *os.File
	if file != "" {
		var err error
		f, err = os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		opts.Output = f
	}

	logger, err := NewZapLogger(opts)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, nil, err
	}
	SetGlobalLogger(logger)

	flush := func() {
		_ = logger.Sync()
		if f != nil {
			f.Close()
		}
	}
	return logger, flush, nil
}

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	global = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger. Before Setup runs it is an
// info-level console logger on stdout.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global, _ = NewZapLogger(Options{})
	}
	return global
}

// OrGlobal returns logger, or the global logger when logger is nil.
func OrGlobal(logger Logger) Logger {
	if logger == nil {
		return GetGlobalLogger()
	}
	return logger
}
