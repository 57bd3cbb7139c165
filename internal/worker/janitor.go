package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner deletes expired rows. The idempotency and outbox repositories implement it.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Janitor periodically prunes expired rows from each named cleaner.
type Janitor struct {
	names    []string
	cleaners map[string]Cleaner
	interval time.Duration
	logger   zerolog.Logger
}

func NewJanitor(cleaners map[string]Cleaner, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	names := make([]string, 0, len(cleaners))
	for name := range cleaners {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Janitor{
		names:    names,
		cleaners: cleaners,
		interval: interval,
		logger:   logger.With().Str("task", "janitor").Logger(),
	}
}

func (j *Janitor) Run(ctx context.Context) error {
	return runEvery(ctx, j.interval, j.logger, j.RunOnce)
}

// RunOnce runs every cleaner, even when an earlier one fails.
func (j *Janitor) RunOnce(ctx context.Context) error {
	var errs []error
	for _, name := range j.names {
		n, err := j.cleaners[name].Cleanup(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if n > 0 {
			j.logger.Info().Str("table", name).Int64("deleted", n).Msg("expired rows removed")
		}
	}
	return errors.Join(errs...)
}
