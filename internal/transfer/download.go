package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"PeerShare/internal/content"
	"PeerShare/internal/events"
	"PeerShare/internal/logger"
	"PeerShare/internal/metrics"
)

// Source looks up stored content by hash.
type Source interface {
	Get(hash string) (content.StoredFile, error)
}

// DownloaderConfig holds the collaborators of a Downloader.
type DownloaderConfig struct {
	// Source is where content is looked up. Required.
	Source Source

	// Sink writes content to its destination. Defaults to FileSink.
	Sink Sink

	// Metrics receives every attempt snapshot. Optional.
	Metrics *metrics.Aggregator

	// Events receives a DownloadAttempt event per attempt. Optional.
	Events *events.Queue

	// Policy bounds the attempt loop. Zero fields take the defaults.
	Policy RetryPolicy

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Downloader materializes stored content at a destination, retrying failed
// attempts with capped exponential backoff. Attempts are strictly sequential.
type Downloader struct {
	source  Source
	sink    Sink
	metrics *metrics.Aggregator
	events  *events.Queue
	policy  RetryPolicy
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDownloader creates a Downloader.
func NewDownloader(cfg DownloaderConfig) (*Downloader, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}

	d := &Downloader{
		source:  cfg.Source,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		events:  cfg.Events,
		policy:  cfg.Policy.normalized(),
		now:     cfg.Clock,
		sleep:   cfg.Sleep,
	}

	if d.sink == nil {
		d.sink = FileSink{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}

	return d, nil
}

// Policy returns the retry policy in effect.
func (d *Downloader) Policy() RetryPolicy {
	return d.policy
}

// Download writes the content stored under hash to dest.
// On exhaustion it returns only the last attempt's error. If ctx is cancelled
// during a backoff wait the loop stops and returns ctx.Err(); anything already
// written or emitted stays as it is.
func (d *Downloader) Download(ctx context.Context, hash, dest string) error {
	log := logger.With("download", uuid.NewString(), "hash", hash)
	budget := d.policy.MaxAttempts

	var lastErr error

	for attempt := uint32(1); attempt <= budget; attempt++ {
		start := d.now()

		if attempt > 1 {
			delay := d.policy.Delay(attempt)
			log.Debug("waiting before retry", "attempt", attempt, "delay", delay)

			if err := d.sleep(ctx, delay); err != nil {
				log.Warn("download abandoned", "attempt", attempt, "error", err)
				return err
			}
		}

		err := d.attempt(ctx, hash, dest)
		elapsed := d.now().Sub(start)

		if err == nil {
			log.Info("download succeeded", "attempt", attempt, "dest", dest, "elapsed", elapsed)
			d.emit(hash, attempt, metrics.StatusSuccess, elapsed)
			return nil
		}

		lastErr = err

		status := metrics.StatusRetrying
		if attempt == budget {
			status = metrics.StatusFailed
		}

		log.Warn("download attempt failed", "attempt", attempt, "max", budget, "status", status, "elapsed", elapsed, "error", err)
		d.emit(hash, attempt, status, elapsed)
	}

	return lastErr
}

// attempt performs one lookup and write.
func (d *Downloader) attempt(ctx context.Context, hash, dest string) error {
	f, err := d.source.Get(hash)
	if errors.Is(err, ErrNotFoundLocally) {
		return err
	}
	if err != nil {
		return fmt.Errorf("read %s: %w: %w", hash, ErrIO, err)
	}

	if err := d.sink.Write(ctx, dest, f.Data); err != nil {
		return fmt.Errorf("write %s: %w: %w", dest, ErrIO, err)
	}

	return nil
}

// emit records the attempt and forwards it as an event.
func (d *Downloader) emit(hash string, attempt uint32, status metrics.Status, elapsed time.Duration) {
	snap := metrics.AttemptSnapshot{
		Hash:        hash,
		Attempt:     attempt,
		MaxAttempts: d.policy.MaxAttempts,
		Status:      status,
		DurationMs:  uint64(max(elapsed, 0).Milliseconds()),
		Timestamp:   uint64(max(d.now().Unix(), 0)),
	}

	if d.metrics != nil {
		d.metrics.Record(snap)
	}

	if d.events != nil {
		d.events.Send(events.DownloadAttempt{Snapshot: snap})
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
