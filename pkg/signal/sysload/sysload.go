// Package sysload is a signal source driven by host load. Bands are cpu,
// memory and load (1-minute load average per logical CPU); the spectrum
// holds per-core utilisation.
package sysload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Type is the source type reported to the bus.
const Type = "sysload"

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = time.Second

// Sampler takes one reading.
type Sampler func(ctx context.Context) (signal.Signal, error)

// Options configures a Source.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Sample replaces the host sampler, mainly for tests.
	Sample Sampler
}

// Source samples the host at a fixed interval.
type Source struct {
	*signal.Base
	interval time.Duration
	sample   Sampler
	logger   *slog.Logger
}

// New creates an idle Source.
func New(opts Options) *Source {
	s := &Source{interval: opts.Interval, sample: opts.Sample, logger: opts.Logger}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.sample == nil {
		s.sample = Sample
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.Base = signal.NewBase(Type, signal.Hooks{Init: s.init, Run: s.run}, s.logger)

	return s
}

// init takes a first reading so hosts that deny access fail at start.
func (s *Source) init(ctx context.Context) error {
	if _, err := s.sample(ctx); err != nil {
		return fmt.Errorf("%w: %w", signal.ErrUnavailable, err)
	}

	return nil
}

func (s *Source) run(ctx context.Context, publish func(signal.Signal) bool) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.publish(ctx, publish)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publish(ctx, publish)
		}
	}
}

func (s *Source) publish(ctx context.Context, publish func(signal.Signal) bool) {
	sig, err := s.sample(ctx)
	if err != nil {
		s.logger.Debug("sysload: sample failed", "error", err)
		return
	}
	publish(sig)
}

// Sample reads the host. Partial readings are kept; an error is returned
// only when nothing could be read.
func Sample(ctx context.Context) (signal.Signal, error) {
	bands := make(map[string]float64, 3)
	var spectrum []float64
	var errs []error

	if total, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(total) > 0 {
		bands["cpu"] = total[0] / 100
	}

	if perCore, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		spectrum = make([]float64, len(perCore))
		for i, p := range perCore {
			spectrum[i] = p / 100
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		bands["memory"] = vm.UsedPercent / 100
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load: %w", err))
	} else {
		bands["load"] = avg.Load1 / float64(runtime.NumCPU())
	}

	if len(errs) == 3 {
		return signal.Signal{}, fmt.Errorf("sysload: all readings failed: %w", errors.Join(errs...))
	}

	return signal.New(bands, spectrum, 1-float64(len(errs))/3), nil
}
