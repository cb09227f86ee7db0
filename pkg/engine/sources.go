package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/germanamz/mmpa/pkg/signal/sysload"
	"github.com/germanamz/mmpa/pkg/signal/wsfeed"
)

// SourceFactory creates a signal source from its configuration.
type SourceFactory func(cfg SourceConfig, logger *slog.Logger) (signal.Source, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]SourceFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["push"] = newPush
		factories[sysload.Type] = newSysload
		factories[wsfeed.Type] = newWSFeed
	})
}

// RegisterSourceKind registers a custom source factory under the given kind.
// It can be called before New to extend the engine with additional inputs
// such as audio or camera analysers.
func RegisterSourceKind(kind string, factory SourceFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

func getSourceFactory(kind string) (SourceFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newPush(cfg SourceConfig, _ *slog.Logger) (signal.Source, error) {
	return signal.NewPush(cfg.Kind), nil
}

func newSysload(cfg SourceConfig, logger *slog.Logger) (signal.Source, error) {
	interval, err := parseDuration("interval", cfg.Interval, sysload.DefaultInterval)
	if err != nil {
		return nil, err
	}

	return sysload.New(sysload.Options{Interval: interval, Logger: logger}), nil
}

func newWSFeed(cfg SourceConfig, logger *slog.Logger) (signal.Source, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	return wsfeed.New(wsfeed.Options{URL: cfg.URL, Logger: logger}), nil
}

// buildSource creates a source using the registered factory for its kind.
func buildSource(cfg SourceConfig, logger *slog.Logger) (signal.Source, error) {
	factory, ok := getSourceFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown source kind %q", cfg.Kind)
	}

	src, err := factory(cfg, logger.With("source", cfg.ID))
	if err != nil {
		return nil, fmt.Errorf("engine: source %q: %w", cfg.ID, err)
	}

	return src, nil
}
