package scheduler

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/amirphl/outreach-autopilot/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a logger writing to stdout and a rotating file, following the logging config.
// An empty path or an "stdout" output keeps the logger on stdout only.
func NewLogger(prefix, path string, cfg config.LoggingConfig) *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC
	if path == "" || cfg.Output == "stdout" {
		return log.New(os.Stdout, prefix, flags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l := log.New(os.Stdout, prefix, flags)
		l.Printf("logger: cannot create log directory for %s: %v", path, err)
		return l
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var w io.Writer = file
	if cfg.Output != "file" {
		w = io.MultiWriter(os.Stdout, file)
	}
	return log.New(w, prefix, flags)
}
