package relay

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAge is the default age in seconds after which a relay is stale.
	DefaultMaxAge = 300

	// DefaultPruneInterval is the default interval between prune runs.
	DefaultPruneInterval = 30 * time.Second
)

// Pruner periodically evicts stale relays from a directory.
type Pruner struct {
	dir      *Directory       // dir is the directory being pruned
	maxAge   uint64           // maxAge is the staleness threshold in seconds
	interval time.Duration    // interval is the time between runs
	now      func() time.Time // now supplies the prune reference time

	stop chan struct{}  // stop signals the prune goroutine to stop
	once sync.Once      // once guards stop
	wg   sync.WaitGroup // wg waits for the prune goroutine
}

// StartPruner starts pruning dir every interval, evicting entries older
// than maxAge seconds. Zero values take the defaults.
func StartPruner(dir *Directory, maxAge uint64, interval time.Duration) *Pruner {
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	p := &Pruner{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		now:      dir.now,
		stop:     make(chan struct{}),
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.RunOnce()
			case <-p.stop:
				return
			}
		}
	}()

	return p
}

// RunOnce prunes immediately and returns the number of evicted entries.
func (p *Pruner) RunOnce() int {
	return p.dir.PruneStale(uint64(max(p.now().Unix(), 0)), p.maxAge)
}

// Close stops the prune goroutine and waits for it.
func (p *Pruner) Close() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}
