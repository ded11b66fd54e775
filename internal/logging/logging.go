package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/podforge/digest-api/pkg/config"
)

// Configure sets up process logging from configuration. When a file path
// is set, log output is rotated on disk and mirrored to stderr.
func Configure(cfg config.LoggingConfig) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.FilePath == "" {
		log.SetOutput(os.Stderr)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   false,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}
