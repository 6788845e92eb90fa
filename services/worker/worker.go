package worker

import (
	"context"
	"errors"
	"time"

	"sjsage522/scoutmcp/logger"
	"sjsage522/scoutmcp/services/proxy"
	"sjsage522/scoutmcp/services/publisher"
)

// ErrorStore is the part of the learning store the worker maintains
type ErrorStore interface {
	ClearOld(ctx context.Context, days int) int
}

// Worker runs periodic housekeeping: it drops stale error patterns, trims
// the event streams and re-tests the proxies
type Worker struct {
	store         ErrorStore
	publisher     publisher.Publisher
	proxies       proxy.ProxyManager
	retentionDays int
	interval      time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker. proxies may be nil.
func NewWorker(
	store ErrorStore,
	pub publisher.Publisher,
	proxies proxy.ProxyManager,
	retentionDays int,
	interval time.Duration,
) *Worker {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &Worker{
		store:         store,
		publisher:     pub,
		proxies:       proxies,
		retentionDays: retentionDays,
		interval:      interval,
		log:           logger.ForWorker(),
	}
}

// Start runs one maintenance pass immediately and then every interval until
// ctx is done
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		w.RunOnce(ctx)
		w.log.Debug().Dur("elapsed", time.Since(start)).Msg("Maintenance pass finished")

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Maintenance worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single maintenance pass
func (w *Worker) RunOnce(ctx context.Context) {
	if removed := w.store.ClearOld(ctx, w.retentionDays); removed > 0 {
		w.log.Info().Int("removed", removed).Int("retention_days", w.retentionDays).Msg("Cleared old error patterns")
	}

	if err := w.publisher.TrimStreams(); err != nil {
		w.log.Error().Err(err).Msg("Stream trimming failed")
	}

	if w.proxies == nil {
		return
	}
	if err := w.proxies.UpdateProxies(ctx); err != nil {
		if errors.Is(err, proxy.ErrNoProxy) {
			w.log.Warn().Msg("No working proxies after refresh")
			return
		}
		w.log.Error().Err(err).Msg("Proxy refresh failed")
	}
}
