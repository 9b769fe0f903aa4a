// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/VT-TyR/drivemind/internal/domain"
)

// Setup configures the global logger: console output always, plus a
// size-rotated file when LogPath is set.
func Setup(cfg *domain.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := parseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen},
	}

	if cfg.LogPath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
