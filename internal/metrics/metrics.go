package metrics

import (
	"fmt"
	"math"
	"sync"
)

const (
	// DefaultHistorySize is the number of recent attempts kept.
	DefaultHistorySize = 20
)

// Status is the outcome of one download attempt.
type Status uint8

const (
	// StatusRetrying means the attempt failed and another will follow.
	StatusRetrying Status = iota

	// StatusSuccess means the attempt materialized the content.
	StatusSuccess

	// StatusFailed means the attempt failed and the budget is exhausted.
	StatusFailed
)

// String returns the snake_case name of the status.
func (s Status) String() string {
	switch s {
	case StatusRetrying:
		return "retrying"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusRetrying, StatusSuccess, StatusFailed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown status %d", uint8(s))
	}
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "retrying":
		*s = StatusRetrying
	case "success":
		*s = StatusSuccess
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", text)
	}

	return nil
}

// AttemptSnapshot records the outcome of a single download attempt.
type AttemptSnapshot struct {
	Hash        string `json:"fileHash"`    // Hash is the content hash being downloaded
	Attempt     uint32 `json:"attempt"`     // Attempt is 1-based
	MaxAttempts uint32 `json:"maxAttempts"` // MaxAttempts is the attempt budget
	Status      Status `json:"status"`      // Status is the attempt outcome
	DurationMs  uint64 `json:"durationMs"`  // DurationMs includes any backoff before the attempt
	Timestamp   uint64 `json:"timestamp"`   // Timestamp is unix seconds at completion
}

// Snapshot is an immutable copy of the aggregate download metrics.
type Snapshot struct {
	TotalSuccess   uint64            `json:"totalSuccess"`
	TotalFailures  uint64            `json:"totalFailures"`
	TotalRetries   uint64            `json:"totalRetries"`
	RecentAttempts []AttemptSnapshot `json:"recentAttempts"` // newest first
}

// Aggregator accumulates download attempt outcomes.
// Record and Snapshot share one lock, so readers never see a half-applied update.
type Aggregator struct {
	mu       sync.Mutex
	success  uint64
	failures uint64
	retries  uint64
	recent   *History
}

// NewAggregator creates an aggregator keeping DefaultHistorySize recent attempts.
func NewAggregator() *Aggregator {
	return NewAggregatorSize(DefaultHistorySize)
}

// NewAggregatorSize creates an aggregator keeping size recent attempts.
func NewAggregatorSize(size int) *Aggregator {
	return &Aggregator{recent: NewHistory(size)}
}

// Record counts the snapshot under its status and adds it to the recent history.
func (a *Aggregator) Record(s AttemptSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s.Status {
	case StatusRetrying:
		a.retries = saturatingInc(a.retries)
	case StatusSuccess:
		a.success = saturatingInc(a.success)
	case StatusFailed:
		a.failures = saturatingInc(a.failures)
	}

	a.recent.PushFront(s)
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		TotalSuccess:   a.success,
		TotalFailures:  a.failures,
		TotalRetries:   a.retries,
		RecentAttempts: a.recent.Slice(),
	}
}

// saturatingInc adds one unless v is already at the maximum.
func saturatingInc(v uint64) uint64 {
	if v == math.MaxUint64 {
		return v
	}

	return v + 1
}
