package relay

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/multiformats/go-multiaddr"

	"PeerShare/internal/logger"
)

// Info describes a relay node known to the directory.
type Info struct {
	PeerID      string   `json:"peerId"`      // PeerID is the relay's unique identity
	Addrs       []string `json:"addrs"`       // Addrs are its reachable addresses
	Alias       string   `json:"alias"`       // Alias is a display name, empty when unknown
	LastSeen    uint64   `json:"lastSeen"`    // LastSeen is the unix time of the last registration
	HealthScore float32  `json:"healthScore"` // HealthScore is in [0, 1]
}

// record is a directory entry plus its registration order.
type record struct {
	info Info
	seq  uint64 // seq is assigned at first registration and kept on update
}

// Directory is a concurrent registry of relay nodes keyed by peer id.
// Reads share the lock; mutations take it exclusively.
type Directory struct {
	mu      sync.RWMutex       // mu protects entries and next
	entries map[string]*record // entries maps peer id to its record
	next    uint64             // next is the seq of the next new peer

	now func() time.Time // now is the clock used for LastSeen
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return NewDirectoryWithClock(time.Now)
}

// NewDirectoryWithClock creates an empty directory that stamps LastSeen with now.
func NewDirectoryWithClock(now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}

	return &Directory{
		entries: make(map[string]*record),
		now:     now,
	}
}

// Register inserts or replaces the entry for peerID.
// The score is clamped to [0, 1] and LastSeen is set to the current time.
func (d *Directory) Register(peerID string, addrs []string, alias string, score float32) {
	info := Info{
		PeerID:      peerID,
		Addrs:       normalizeAddrs(addrs),
		Alias:       alias,
		LastSeen:    uint64(max(d.now().Unix(), 0)),
		HealthScore: clampScore(score),
	}

	d.mu.Lock()

	rec, exists := d.entries[peerID]
	if exists {
		rec.info = info
	} else {
		d.entries[peerID] = &record{info: info, seq: d.next}
		d.next++
	}

	d.mu.Unlock()

	if exists {
		logger.Debug("relay updated", "peer", peerID, "score", info.HealthScore)
	} else {
		logger.Info("relay registered", "peer", peerID, "alias", alias, "addrs", len(info.Addrs), "score", info.HealthScore)
	}
}

// List returns every entry, healthiest first.
// Entries with equal scores keep their first-registration order.
func (d *Directory) List() []Info {
	d.mu.RLock()

	recs := make([]*record, 0, len(d.entries))
	for _, rec := range d.entries {
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].info.HealthScore != recs[j].info.HealthScore {
			return recs[i].info.HealthScore > recs[j].info.HealthScore
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]Info, len(recs))
	for i, rec := range recs {
		out[i] = rec.info.clone()
	}

	d.mu.RUnlock()

	return out
}

// Get returns the entry for peerID.
func (d *Directory) Get(peerID string) (Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.entries[peerID]
	if !ok {
		return Info{}, false
	}

	return rec.info.clone(), true
}

// Contains reports whether peerID is registered.
func (d *Directory) Contains(peerID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.entries[peerID]
	return ok
}

// Remove deletes the entry for peerID and reports whether it existed.
func (d *Directory) Remove(peerID string) bool {
	d.mu.Lock()
	_, ok := d.entries[peerID]
	delete(d.entries, peerID)
	d.mu.Unlock()

	if ok {
		logger.Debug("relay removed", "peer", peerID)
	}

	return ok
}

// PruneStale removes entries whose age at now exceeds maxAge seconds and
// returns how many were removed. Entries stamped after now have age zero.
func (d *Directory) PruneStale(now, maxAge uint64) int {
	d.mu.Lock()

	removed := 0
	for id, rec := range d.entries {
		if saturatingSub(now, rec.info.LastSeen) > maxAge {
			delete(d.entries, id)
			removed++
		}
	}

	d.mu.Unlock()

	if removed > 0 {
		logger.Info("pruned stale relays", "removed", removed, "max_age", maxAge)
	}

	return removed
}

// Count returns the number of entries.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries)
}

// Clear removes every entry.
func (d *Directory) Clear() {
	d.mu.Lock()
	n := len(d.entries)
	d.entries = make(map[string]*record)
	d.mu.Unlock()

	logger.Debug("relay directory cleared", "removed", n)
}

// clone returns a copy of i that shares no memory with it.
func (i Info) clone() Info {
	i.Addrs = append([]string(nil), i.Addrs...)
	return i
}

// clampScore bounds s to [0, 1]. NaN becomes 0.
func clampScore(s float32) float32 {
	switch {
	case math.IsNaN(float64(s)) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// normalizeAddrs drops duplicates, keeping first occurrence order.
// Addresses that parse as multiaddrs are stored in canonical form;
// anything else is kept verbatim.
func normalizeAddrs(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))

	for _, a := range addrs {
		if m, err := multiaddr.NewMultiaddr(a); err == nil {
			a = m.String()
		}

		if _, dup := seen[a]; dup {
			continue
		}

		seen[a] = struct{}{}
		out = append(out, a)
	}

	return out
}

// saturatingSub returns a-b, or 0 when b > a.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
