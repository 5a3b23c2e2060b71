package transfer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"PeerShare/internal/content"
	"PeerShare/internal/events"
	"PeerShare/internal/logger"
	"PeerShare/internal/metrics"
)

const (
	// DefaultCommandCapacity is the default number of queued commands.
	DefaultCommandCapacity = 100
)

// Command is a request processed by the service worker.
type Command interface {
	command()
}

// UploadFile reads the file at Path and stores it under Name.
type UploadFile struct {
	Path string
	Name string
}

// DownloadFile writes the content stored under Hash to Destination.
type DownloadFile struct {
	Hash        string
	Destination string
}

// GetStoredFiles logs the current store listing.
type GetStoredFiles struct{}

func (UploadFile) command()     {}
func (DownloadFile) command()   {}
func (GetStoredFiles) command() {}

// Config holds the settings of a Service.
type Config struct {
	// Store holds uploaded content. Required; the caller keeps ownership.
	Store *content.Store

	// Metrics aggregates download attempts. Created when nil.
	Metrics *metrics.Aggregator

	// Events receives lifecycle events. Created with EventCapacity when nil.
	Events *events.Queue

	// CommandCapacity bounds the command queue (default 100).
	CommandCapacity int

	// EventCapacity bounds a created event queue (default 100).
	EventCapacity int

	// Policy bounds download retries.
	Policy RetryPolicy

	// Sink writes downloads. Defaults to FileSink.
	Sink Sink

	// Clock and Sleep are passed to the Downloader.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service serializes upload, download and listing commands through a single
// worker goroutine, in arrival order.
type Service struct {
	store      *content.Store
	metrics    *metrics.Aggregator
	events     *events.Queue
	downloader *Downloader

	cmds chan Command // cmds is the bounded command queue

	mu       sync.RWMutex   // mu guards closed, never held while waiting
	closed   bool           // closed rejects new submissions
	senders  sync.WaitGroup // senders counts Submit calls past the closed check
	stopping chan struct{}  // stopping is closed to release waiting senders

	ctx    context.Context    // ctx is cancelled to abandon in-flight work
	cancel context.CancelFunc // cancel cancels ctx
	wg     sync.WaitGroup     // wg waits for the worker
}

// NewService creates a service and starts its worker.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	capacity := cfg.CommandCapacity
	if capacity < 1 {
		capacity = DefaultCommandCapacity
	}

	agg := cfg.Metrics
	if agg == nil {
		agg = metrics.NewAggregator()
	}

	queue := cfg.Events
	if queue == nil {
		queue = events.NewQueue(cfg.EventCapacity)
	}

	dl, err := NewDownloader(DownloaderConfig{
		Source:  cfg.Store,
		Sink:    cfg.Sink,
		Metrics: agg,
		Events:  queue,
		Policy:  cfg.Policy,
		Clock:   cfg.Clock,
		Sleep:   cfg.Sleep,
	})
	if err != nil {
		return nil, fmt.Errorf("create downloader:\n%w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		store:      cfg.Store,
		metrics:    agg,
		events:     queue,
		downloader: dl,
		cmds:       make(chan Command, capacity),
		stopping:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Submit queues cmd, waiting for room if the queue is full.
// It returns ErrChannelClosed once the service is stopping.
func (s *Service) Submit(ctx context.Context, cmd Command) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrChannelClosed
	}
	s.senders.Add(1)
	s.mu.RUnlock()

	defer s.senders.Done()

	select {
	case <-s.stopping:
		return ErrChannelClosed
	default:
	}

	select {
	case s.cmds <- cmd:
		return nil
	case <-s.stopping:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upload queues an UploadFile command.
func (s *Service) Upload(ctx context.Context, path, name string) error {
	return s.Submit(ctx, UploadFile{Path: path, Name: name})
}

// Download queues a DownloadFile command.
func (s *Service) Download(ctx context.Context, hash, dest string) error {
	return s.Submit(ctx, DownloadFile{Hash: hash, Destination: dest})
}

// StoredFiles returns the hash and name of every stored file.
func (s *Service) StoredFiles() []content.FileInfo {
	return s.store.List()
}

// StoreFileData adds content received from elsewhere. The hash must match the data.
func (s *Service) StoreFileData(hash, name string, data []byte) error {
	return s.store.Insert(hash, name, data)
}

// MetricsSnapshot returns the current download metrics.
func (s *Service) MetricsSnapshot() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// DrainEvents returns up to max pending events without blocking.
func (s *Service) DrainEvents(max int) []events.Event {
	return s.events.Drain(max)
}

// Close stops accepting commands, abandons in-flight and queued work, waits
// for the worker and disconnects the event queue. The store is left open.
func (s *Service) Close() error {
	s.cancel()

	if !s.stop() {
		return nil
	}

	s.wg.Wait()
	s.events.Close()

	return nil
}

// Shutdown stops accepting commands and lets the worker finish what is queued.
// If ctx ends first, remaining work is abandoned as in Close.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.stop() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error

	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancel()
		<-done
	}

	s.cancel()
	s.events.Close()

	return err
}

// stop releases waiting senders, rejects new ones and closes the command
// queue once no sender can still write to it.
// It returns false if the service was already stopped.
func (s *Service) stop() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	close(s.stopping)
	s.mu.Unlock()

	s.senders.Wait()
	close(s.cmds)

	return true
}

// run is the worker loop. It exits when the command queue is closed and drained.
func (s *Service) run() {
	defer s.wg.Done()

	for cmd := range s.cmds {
		if s.ctx.Err() != nil {
			logger.Debug("command skipped, service stopping", "command", fmt.Sprintf("%T", cmd))
			continue
		}

		s.handle(cmd)
	}
}

// handle dispatches one command.
func (s *Service) handle(cmd Command) {
	switch c := cmd.(type) {
	case UploadFile:
		s.handleUpload(c)
	case DownloadFile:
		s.handleDownload(c)
	case GetStoredFiles:
		files := s.store.List()
		logger.Debug("stored files", "count", len(files))
	default:
		logger.Warn("unknown command", "command", fmt.Sprintf("%T", cmd))
	}
}

// handleUpload reads, hashes and stores a file.
func (s *Service) handleUpload(c UploadFile) {
	start := time.Now()

	hash, err := s.upload(c.Path, c.Name)
	if err != nil {
		msg := fmt.Sprintf("upload failed: %v", err)
		logger.Error("file upload failed", "path", c.Path, "name", c.Name, "error", err)
		s.events.Send(events.Error{Message: msg})
		return
	}

	logger.Info("file uploaded", "name", c.Name, "hash", hash, logger.Timed(start))
	s.events.Send(events.FileUploaded{Hash: hash, Name: c.Name})
}

// upload reads the file at path and stores it.
func (s *Service) upload(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w: %w", path, ErrIO, err)
	}

	return s.store.Put(name, data)
}

// handleDownload runs the retrying download and reports its outcome.
// Every terminal failure, not-found included, is reported as an Error carrying
// the last attempt's message; the attempt events tell the causes apart.
func (s *Service) handleDownload(c DownloadFile) {
	err := s.downloader.Download(s.ctx, c.Hash, c.Destination)

	switch {
	case err == nil:
		logger.Info("file downloaded", "hash", c.Hash, "dest", c.Destination)
		s.events.Send(events.FileDownloaded{Path: c.Destination})
	default:
		logger.Error("file download failed", "hash", c.Hash, "error", err)
		s.events.Send(events.Error{Message: fmt.Sprintf("download failed: %v", err)})
	}
}
