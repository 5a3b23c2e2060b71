package metrics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

// attempt builds a snapshot for hash with the given attempt number and status.
func attempt(hash string, n uint32, status Status) AttemptSnapshot {
	return AttemptSnapshot{Hash: hash, Attempt: n, MaxAttempts: 3, Status: status}
}

func TestRecordCountsByStatus(t *testing.T) {
	a := NewAggregator()

	a.Record(attempt("h", 1, StatusRetrying))
	a.Record(attempt("h", 2, StatusRetrying))
	a.Record(attempt("h", 3, StatusSuccess))
	a.Record(attempt("x", 3, StatusFailed))

	s := a.Snapshot()
	if s.TotalRetries != 2 {
		t.Errorf("retries = %d, want 2", s.TotalRetries)
	}
	if s.TotalSuccess != 1 {
		t.Errorf("success = %d, want 1", s.TotalSuccess)
	}
	if s.TotalFailures != 1 {
		t.Errorf("failures = %d, want 1", s.TotalFailures)
	}
	if len(s.RecentAttempts) != 4 {
		t.Errorf("recent = %d, want 4", len(s.RecentAttempts))
	}
}

func TestRecentNewestFirstAndBounded(t *testing.T) {
	a := NewAggregator()

	for i := uint32(1); i <= 55; i++ {
		a.Record(AttemptSnapshot{Hash: "h", Attempt: i, Status: StatusRetrying})

		s := a.Snapshot()
		if len(s.RecentAttempts) > DefaultHistorySize {
			t.Fatalf("recent length %d exceeds %d", len(s.RecentAttempts), DefaultHistorySize)
		}
		if s.RecentAttempts[0].Attempt != i {
			t.Fatalf("recent[0].Attempt = %d, want %d", s.RecentAttempts[0].Attempt, i)
		}
	}

	s := a.Snapshot()
	if len(s.RecentAttempts) != DefaultHistorySize {
		t.Fatalf("recent length = %d, want %d", len(s.RecentAttempts), DefaultHistorySize)
	}

	// Oldest retained entry is 55-19 = 36.
	if last := s.RecentAttempts[DefaultHistorySize-1].Attempt; last != 36 {
		t.Errorf("oldest attempt = %d, want 36", last)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	a := NewAggregator()
	a.Record(attempt("h", 1, StatusSuccess))

	s := a.Snapshot()
	s.RecentAttempts[0].Hash = "mutated"

	if got := a.Snapshot().RecentAttempts[0].Hash; got != "h" {
		t.Errorf("aggregator state mutated through snapshot: %q", got)
	}
}

func TestCountersSaturate(t *testing.T) {
	a := NewAggregator()
	a.retries = math.MaxUint64
	a.success = math.MaxUint64
	a.failures = math.MaxUint64

	a.Record(attempt("h", 1, StatusRetrying))
	a.Record(attempt("h", 2, StatusSuccess))
	a.Record(attempt("h", 3, StatusFailed))

	s := a.Snapshot()
	if s.TotalRetries != math.MaxUint64 || s.TotalSuccess != math.MaxUint64 || s.TotalFailures != math.MaxUint64 {
		t.Errorf("counters wrapped: %+v", s)
	}
}

func TestHistoryWrap(t *testing.T) {
	h := NewHistory(3)

	for i := uint32(1); i <= 5; i++ {
		h.PushFront(AttemptSnapshot{Attempt: i})
	}

	if h.Len() != 3 || h.Cap() != 3 {
		t.Fatalf("len/cap = %d/%d, want 3/3", h.Len(), h.Cap())
	}

	want := []uint32{5, 4, 3}
	for i, w := range want {
		got, ok := h.At(i)
		if !ok || got.Attempt != w {
			t.Errorf("At(%d) = %d, %v, want %d", i, got.Attempt, ok, w)
		}
	}

	for _, i := range []int{-1, 3, 20} {
		if _, ok := h.At(i); ok {
			t.Errorf("At(%d) reported an entry outside the history", i)
		}
	}

	if _, ok := NewHistory(2).At(0); ok {
		t.Error("At(0) on an empty history reported an entry")
	}
}

func TestStatusJSON(t *testing.T) {
	s := AttemptSnapshot{Hash: "abc", Attempt: 2, MaxAttempts: 3, Status: StatusRetrying, DurationMs: 250, Timestamp: 1700000000}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, want := range []string{`"fileHash":"abc"`, `"maxAttempts":3`, `"status":"retrying"`, `"durationMs":250`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("json %s missing %s", data, want)
		}
	}

	var back AttemptSnapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != s {
		t.Errorf("round trip = %+v, want %+v", back, s)
	}
}

func TestStatusUnknown(t *testing.T) {
	var s Status
	if err := s.UnmarshalText([]byte("pending")); err == nil {
		t.Error("expected error for unknown status")
	}

	if _, err := Status(9).MarshalText(); err == nil {
		t.Error("expected error marshaling unknown status")
	}
}
