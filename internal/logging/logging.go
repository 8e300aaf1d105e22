package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultLogPath keeps the full structured run log next to the summary,
// readable by the privileged account only.
const DefaultLogPath = "/var/log/panel-installer.log"

// New builds the run logger: human-readable console output plus a JSON log
// file when the path is writable. A missing log file never blocks a run.
func New(logPath string, debug bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	writers := []io.Writer{console}

	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			writers = append(writers, f)
		}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("service", "panel-installer").
		Logger().
		Level(level)
}
