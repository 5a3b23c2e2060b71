package node

import (
	"context"
	"errors"
	"fmt"

	"PeerShare/internal/bootstrap"
	"PeerShare/internal/config"
	"PeerShare/internal/content"
	"PeerShare/internal/logger"
	"PeerShare/internal/metrics"
	"PeerShare/internal/relay"
	"PeerShare/internal/storage"
	"PeerShare/internal/transfer"
)

// Node is an assembled PeerShare coordination core.
type Node struct {
	cfg       *config.Config
	store     *content.Store
	metrics   *metrics.Aggregator
	transfer  *transfer.Service
	relays    *relay.Directory
	pruner    *relay.Pruner
	bootstrap []bootstrap.Node // bootstrap is the resolved bootstrap list
}

// New assembles a node from cfg. A nil cfg uses the defaults.
func New(cfg *config.Config) (*Node, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	n := &Node{cfg: cfg}

	if err := n.initLogger(); err != nil {
		return nil, err
	}

	if err := n.initStore(); err != nil {
		return nil, err
	}

	if err := n.initTransfer(); err != nil {
		n.Close()
		return nil, err
	}

	n.initRelays()
	n.initBootstrap()

	logger.Info("node ready",
		"command_capacity", cfg.Transfer.CommandCapacity,
		"max_attempts", cfg.Transfer.MaxAttempts,
		"history", cfg.Metrics.HistorySize,
		"bootstrap", len(n.bootstrap),
	)

	return n, nil
}

// initLogger installs the line handler and applies the configured level.
func (n *Node) initLogger() error {
	level, err := logger.ParseLevel(n.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level:\n%w", err)
	}

	logger.Init()
	logger.SetLevel(level)

	return nil
}

// initStore opens the in-memory blob storage and the content store over it.
func (n *Node) initStore() error {
	db, err := storage.New(storage.Options{CacheSize: n.cfg.Storage.CacheSize})
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	store, err := content.NewWithStorage(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("init content store:\n%w", err)
	}

	n.store = store

	return nil
}

// initTransfer starts the command worker.
func (n *Node) initTransfer() error {
	n.metrics = metrics.NewAggregatorSize(n.cfg.Metrics.HistorySize)

	svc, err := transfer.NewService(transfer.Config{
		Store:           n.store,
		Metrics:         n.metrics,
		CommandCapacity: n.cfg.Transfer.CommandCapacity,
		EventCapacity:   n.cfg.Transfer.EventCapacity,
		Policy: transfer.RetryPolicy{
			MaxAttempts: n.cfg.Transfer.MaxAttempts,
			BaseBackoff: n.cfg.Transfer.BaseBackoff.Duration,
			MaxBackoff:  n.cfg.Transfer.MaxBackoff.Duration,
		},
	})
	if err != nil {
		return fmt.Errorf("init transfer:\n%w", err)
	}

	n.transfer = svc

	return nil
}

// initRelays creates the relay directory and its pruner.
func (n *Node) initRelays() {
	n.relays = relay.NewDirectory()

	maxAge := uint64(n.cfg.Relay.MaxAge.Seconds())
	n.pruner = relay.StartPruner(n.relays, maxAge, n.cfg.Relay.PruneInterval.Duration)
}

// initBootstrap resolves the bootstrap node list.
func (n *Node) initBootstrap() {
	r := &bootstrap.Resolver{File: n.cfg.Bootstrap.NodesFile}
	n.bootstrap = r.ResolveNodes()
}

// Transfer returns the command service.
func (n *Node) Transfer() *transfer.Service {
	return n.transfer
}

// Relays returns the relay directory.
func (n *Node) Relays() *relay.Directory {
	return n.relays
}

// RelayRecords encodes the relay directory, healthiest first, for the transport.
func (n *Node) RelayRecords() []byte {
	return relay.Encode(n.relays.List())
}

// ImportRelays registers every relay in an encoded list received from a peer
// and returns how many were registered. Imported entries are stamped as seen now.
func (n *Node) ImportRelays(buf []byte) (int, error) {
	infos, err := relay.Decode(buf)
	if err != nil {
		return 0, fmt.Errorf("decode relay list:\n%w", err)
	}

	for _, info := range infos {
		n.relays.Register(info.PeerID, info.Addrs, info.Alias, info.HealthScore)
	}

	logger.Debug("relays imported", "count", len(infos), "known", n.relays.Count())

	return len(infos), nil
}

// BootstrapNodes returns a copy of the resolved bootstrap list.
func (n *Node) BootstrapNodes() []bootstrap.Node {
	return append([]bootstrap.Node(nil), n.bootstrap...)
}

// VerifyStore checks every stored blob and returns the hashes that failed.
func (n *Node) VerifyStore() ([]string, error) {
	return n.store.Verify()
}

// Shutdown lets queued commands finish, then releases everything.
func (n *Node) Shutdown(ctx context.Context) error {
	var errs []error

	if n.transfer != nil {
		if err := n.transfer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown transfer:\n%w", err))
		}
	}

	if err := n.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Close stops every component immediately. It is safe to call more than once.
func (n *Node) Close() error {
	if n.pruner != nil {
		n.pruner.Close()
	}

	if n.transfer != nil {
		n.transfer.Close()
	}

	if n.store != nil {
		if err := n.store.Close(); err != nil {
			return fmt.Errorf("close content store:\n%w", err)
		}
	}

	return nil
}
