package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slotbook/internal/config"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger from the logging section.
// Empty fields mean JSON, info level, stdout. Output "file" and "both" need
// logging.file_path; the returned closer is non-nil only when a file is open.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	console := strings.ToLower(strings.TrimSpace(cfg.Format)) == "console"
	wrap := func(w io.Writer) io.Writer {
		if console {
			return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		return w
	}

	var (
		output io.Writer
		closer io.Closer
	)
	switch mode := strings.ToLower(strings.TrimSpace(cfg.Output)); mode {
	case "", "stdout":
		output = wrap(os.Stdout)
	case "stderr":
		output = wrap(os.Stderr)
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		closer = file
		// в файл всегда пишем JSON
		output = file
		if mode == "both" {
			output = zerolog.MultiLevelWriter(wrap(os.Stdout), file)
		}
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger *zerolog.Logger, name string) *zerolog.Logger {
	l := logger.With().Str("component", name).Logger()
	return &l
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("logging.output=file requires logging.file_path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}
