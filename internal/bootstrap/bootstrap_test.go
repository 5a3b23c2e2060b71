package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// envWith returns a lookup func that only knows EnvVar.
func envWith(value string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if key == EnvVar {
			return value, true
		}
		return "", false
	}
}

// noEnv is a lookup func for an empty environment.
func noEnv(string) (string, bool) { return "", false }

func TestEnvironmentWins(t *testing.T) {
	r := &Resolver{LookupEnv: envWith(" /ip4/1.2.3.4/tcp/4001 ,, /ip4/5.6.7.8/tcp/4002,")}

	nodes := r.ResolveNodes()
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2: %+v", len(nodes), nodes)
	}

	if nodes[0].Multiaddr != "/ip4/1.2.3.4/tcp/4001" || nodes[0].Alias != "bootstrap-1" {
		t.Errorf("node 0 = %+v", nodes[0])
	}
	if nodes[1].Multiaddr != "/ip4/5.6.7.8/tcp/4002" || nodes[1].Alias != "bootstrap-2" {
		t.Errorf("node 1 = %+v", nodes[1])
	}
}

func TestEnvironmentDropsInvalid(t *testing.T) {
	r := &Resolver{LookupEnv: envWith("garbage,/ip4/1.2.3.4/tcp/1")}

	got := r.Resolve()
	if len(got) != 1 || got[0] != "/ip4/1.2.3.4/tcp/1" {
		t.Errorf("resolve = %v", got)
	}
}

func TestEmptyEnvironmentFallsThrough(t *testing.T) {
	r := &Resolver{
		LookupEnv: envWith(" , ,"),
		JSON:      []byte(`{"nodes":[{"alias":"local","multiaddr":"/ip4/127.0.0.1/tcp/4001"}]}`),
	}

	nodes := r.ResolveNodes()
	if len(nodes) != 1 || nodes[0].Alias != "local" {
		t.Errorf("nodes = %+v, want the file entry", nodes)
	}
}

func TestFileReplacesEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	data := `{"nodes":[{"alias":"a","multiaddr":"/ip4/10.0.0.1/tcp/1"},{"alias":"b","multiaddr":"/dns4/relay.example/tcp/2"}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := &Resolver{LookupEnv: noEnv, File: path}

	got := r.Resolve()
	if len(got) != 2 || got[1] != "/dns4/relay.example/tcp/2" {
		t.Errorf("resolve = %v", got)
	}
}

func TestBadFileUsesFallback(t *testing.T) {
	tests := []struct {
		name string
		r    *Resolver
	}{
		{"missing file", &Resolver{LookupEnv: noEnv, File: filepath.Join(t.TempDir(), "absent.json")}},
		{"invalid json", &Resolver{LookupEnv: noEnv, JSON: []byte("{")}},
		{"empty list", &Resolver{LookupEnv: noEnv, JSON: []byte(`{"nodes":[]}`)}},
		{"all invalid", &Resolver{LookupEnv: noEnv, JSON: []byte(`{"nodes":[{"alias":"x","multiaddr":"nope"}]}`)}},
	}

	for _, tt := range tests {
		nodes := tt.r.ResolveNodes()
		if len(nodes) != 3 {
			t.Errorf("%s: got %d nodes, want 3", tt.name, len(nodes))
			continue
		}
		if nodes[0].Alias != "vincenzo-bootstrap" {
			t.Errorf("%s: first alias = %q", tt.name, nodes[0].Alias)
		}
	}
}

func TestEmbeddedNodes(t *testing.T) {
	nodes := (&Resolver{LookupEnv: noEnv}).ResolveNodes()

	if len(nodes) == 0 {
		t.Fatal("no embedded nodes")
	}
	for _, n := range nodes {
		if n.Alias == "" || !strings.HasPrefix(n.Multiaddr, "/ip4/") {
			t.Errorf("node = %+v", n)
		}
	}
}

func TestFallback(t *testing.T) {
	nodes := Fallback()
	if len(nodes) != 3 {
		t.Fatalf("fallback has %d nodes, want 3", len(nodes))
	}

	hosts := []string{"134.199.240.145", "136.116.190.115", "130.245.173.105"}
	for i, h := range hosts {
		if !strings.Contains(nodes[i].Multiaddr, h) {
			t.Errorf("fallback[%d] = %s, want host %s", i, nodes[i].Multiaddr, h)
		}
	}

	nodes[0].Alias = "changed"
	if Fallback()[0].Alias != "vincenzo-bootstrap" {
		t.Error("Fallback returned shared storage")
	}
}
