package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
)

// setupLogging builds the run logger. Lines always go to stdout; with
// WriteToFile they are also appended to the log file so repeated runs
// accumulate one history. The returned closer releases the file.
func setupLogging(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, func() error, error) {
	var opts *slog.HandlerOptions
	if cfg.Debug {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	var handler slog.Handler = slog.NewTextHandler(stdout, opts)
	closer := func() error { return nil }

	if cfg.WriteToFile && cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		handler = slogmulti.Fanout(handler, slog.NewTextHandler(f, opts))
		closer = f.Close
	}

	logger := slog.New(handler).With(slog.String("runID", uuid.NewString()))
	return logger, closer, nil
}
