package cli

import (
	"log/slog"
	"os"

	"skillquiz-service/internal/config"
	"skillquiz-service/internal/logging"
)

// loadRuntime reads configuration and builds the process logger from it.
func loadRuntime(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
