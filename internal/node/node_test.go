package node

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PeerShare/internal/config"
	"PeerShare/internal/content"
	"PeerShare/internal/events"
	"PeerShare/internal/relay"
	"PeerShare/internal/transfer"
)

// newTestNode creates a node with defaults and closes it at test end.
func newTestNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { n.Close() })

	return n
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Transfer.MaxAttempts = 0

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestNodeUploadDownload(t *testing.T) {
	n := newTestNode(t, nil)
	ctx := context.Background()

	data := []byte("node round trip")
	src := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := n.Transfer()
	if err := svc.Upload(ctx, src, "src.bin"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "dest.bin")
	if err := svc.Download(ctx, content.HashOf(data), dest); err != nil {
		t.Fatalf("download: %v", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Shutdown drains the queue, so both commands have run.
	if err := svc.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	evs := svc.DrainEvents(10)

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("dest = %q, want %q", got, data)
	}

	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(evs), evs)
	}
	if evs[0].Kind() != events.KindFileUploaded || evs[2].Kind() != events.KindFileDownloaded {
		t.Errorf("event kinds = %v, %v, %v", evs[0].Kind(), evs[1].Kind(), evs[2].Kind())
	}

	if files := svc.StoredFiles(); len(files) != 1 || files[0].Name != "src.bin" {
		t.Errorf("stored files = %+v", files)
	}

	bad, err := n.VerifyStore()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(bad) != 0 {
		t.Errorf("verify reported %v", bad)
	}

	if err := svc.Upload(ctx, src, "again"); !errors.Is(err, transfer.ErrChannelClosed) {
		t.Errorf("upload after shutdown err = %v, want ErrChannelClosed", err)
	}
}

func TestNodeUsesConfiguredPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Transfer.MaxAttempts = 1
	cfg.Metrics.HistorySize = 5

	n := newTestNode(t, cfg)
	svc := n.Transfer()

	if err := svc.Download(context.Background(), "missing", filepath.Join(t.TempDir(), "x")); err != nil {
		t.Fatalf("download: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	snap := svc.MetricsSnapshot()
	if snap.TotalFailures != 1 || snap.TotalRetries != 0 {
		t.Errorf("failures/retries = %d/%d, want 1/0", snap.TotalFailures, snap.TotalRetries)
	}
	if len(snap.RecentAttempts) != 1 || snap.RecentAttempts[0].MaxAttempts != 1 {
		t.Errorf("recent = %+v", snap.RecentAttempts)
	}
}

func TestNodeRelaysAndBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	data := `{"nodes":[{"alias":"lab","multiaddr":"/ip4/192.168.1.10/tcp/4001"}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := config.Default()
	cfg.Bootstrap.NodesFile = path

	n := newTestNode(t, cfg)

	// The bootstrap environment variable, if set, takes precedence over the file.
	if _, ok := os.LookupEnv("BOOTSTRAP_NODES"); !ok {
		nodes := n.BootstrapNodes()
		if len(nodes) != 1 || nodes[0].Alias != "lab" {
			t.Errorf("bootstrap = %+v, want the configured file", nodes)
		}
	}

	n.Relays().Register("peer", []string{"/ip4/10.0.0.1/tcp/4001"}, "r", 0.5)
	if n.Relays().Count() != 1 {
		t.Errorf("relay count = %d, want 1", n.Relays().Count())
	}
}

func TestCloseTwice(t *testing.T) {
	n, err := New(nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestShutdownRunsQueuedWork(t *testing.T) {
	n, err := New(nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	src := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(src, []byte("queued"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := n.Transfer().Upload(context.Background(), src, "f"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	evs := n.Transfer().DrainEvents(5)
	if len(evs) != 1 || evs[0].Kind() != events.KindFileUploaded {
		t.Errorf("events = %v, want one upload", evs)
	}
}

func TestRelayRecordsExchange(t *testing.T) {
	a := newTestNode(t, nil)
	b := newTestNode(t, nil)

	a.Relays().Register("low", []string{"/ip4/10.0.0.1/tcp/4001"}, "l", 0.2)
	a.Relays().Register("high", []string{"/ip4/10.0.0.2/tcp/4001"}, "h", 0.9)

	n, err := b.ImportRelays(a.RelayRecords())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d relays, want 2", n)
	}

	got := b.Relays().List()
	if len(got) != 2 || got[0].PeerID != "high" || got[1].PeerID != "low" {
		t.Fatalf("relays = %+v", got)
	}
	if got[0].Alias != "h" || len(got[0].Addrs) != 1 || got[0].Addrs[0] != "/ip4/10.0.0.2/tcp/4001" {
		t.Errorf("high = %+v", got[0])
	}

	if _, err := b.ImportRelays([]byte{1, 2, 3}); !errors.Is(err, relay.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
