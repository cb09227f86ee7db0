package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/germanamz/mmpa/pkg/datadir"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/joho/godotenv"
)

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath picks the config file: the explicit flag, then the data
// directory's config.yaml, then mmpa.yaml in the working directory. An empty
// result means no file was found and defaults apply.
func resolveConfigPath(explicit string, dir datadir.Dir) string {
	if explicit != "" {
		return explicit
	}

	for _, p := range []string{dir.ConfigPath(), "mmpa.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// loadConfig resolves the data directory, loads .env and the config file,
// and applies flag overrides.
func loadConfig(cf *commonFlags) (engine.Config, error) {
	dir := datadir.New(cf.dataDir)

	envFile := cf.envFile
	if envFile == "" {
		envFile = dir.EnvPath()
	}
	if err := loadDotEnv(envFile); err != nil {
		return engine.Config{}, err
	}

	var cfg engine.Config
	if path := resolveConfigPath(cf.config, dir); path != "" {
		var err error
		if cfg, err = engine.LoadConfig(path); err != nil {
			return engine.Config{}, err
		}
	}
	if cf.dataDir != "" || cfg.DataDir == "" {
		cfg.DataDir = dir.Root()
	}

	return cfg, nil
}

// openEngine loads the configuration and builds an engine that logs to w.
func openEngine(ctx context.Context, cf *commonFlags, w io.Writer) (*engine.Engine, engine.Config, error) {
	cfg, err := loadConfig(cf)
	if err != nil {
		return nil, engine.Config{}, err
	}

	cfg.Logger = newLogger(w, cfg.LogLevel)
	slog.SetDefault(cfg.Logger)

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, engine.Config{}, err
	}

	return eng, cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: engine.ParseLogLevel(level)}))
}
