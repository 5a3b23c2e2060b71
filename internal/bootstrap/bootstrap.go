package bootstrap

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/multiformats/go-multiaddr"

	"PeerShare/internal/logger"
)

// EnvVar overrides every other bootstrap source when set to a non-empty list.
const EnvVar = "BOOTSTRAP_NODES"

//go:embed bootstrap_nodes.json
var embeddedNodes []byte

// Node is a bootstrap peer with a display alias.
type Node struct {
	Alias     string `json:"alias"`
	Multiaddr string `json:"multiaddr"`
}

// nodesFile is the layout of a bootstrap nodes JSON file.
type nodesFile struct {
	Nodes []Node `json:"nodes"`
}

// fallback is used when neither the environment nor the nodes file yields anything.
var fallback = []Node{
	{Alias: "vincenzo-bootstrap", Multiaddr: "/ip4/134.199.240.145/tcp/4001/p2p/12D3KooWFYTuQ2FY8tXRtFKfpXkTSipTF55mZkLntwtN1nHu83qE"},
	{Alias: "turtle-bootstrap-2", Multiaddr: "/ip4/136.116.190.115/tcp/4001/p2p/12D3KooWETLNJUVLbkAbenbSPPdwN9ZLkBU3TLfyAeEUW2dsVptr"},
	{Alias: "whale-bootstrap-3", Multiaddr: "/ip4/130.245.173.105/tcp/4001/p2p/12D3KooWGFRvjXFBoU9y6xdteqP1kzctAXrYPoaDGmTGRHybZ6rp"},
}

// Resolver picks the bootstrap node list.
// Sources are tried in order: environment, nodes file, built-in fallback.
type Resolver struct {
	// LookupEnv reads an environment variable. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)

	// File is a nodes JSON file read instead of the embedded one when set.
	File string

	// JSON replaces the embedded nodes file contents when non-nil. Ignored if File is set.
	JSON []byte
}

// Resolve returns the bootstrap multiaddrs using the default resolver.
func Resolve() []string {
	return (&Resolver{}).Resolve()
}

// ResolveNodes returns the bootstrap nodes using the default resolver.
func ResolveNodes() []Node {
	return (&Resolver{}).ResolveNodes()
}

// Fallback returns a copy of the built-in bootstrap nodes.
func Fallback() []Node {
	return append([]Node(nil), fallback...)
}

// Resolve returns the multiaddrs of ResolveNodes.
func (r *Resolver) Resolve() []string {
	nodes := r.ResolveNodes()

	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.Multiaddr
	}

	return addrs
}

// ResolveNodes returns the bootstrap nodes from the first source that yields any.
// Nodes from the environment are named bootstrap-1, bootstrap-2, ...
func (r *Resolver) ResolveNodes() []Node {
	if nodes := r.fromEnv(); len(nodes) > 0 {
		logger.Info("using bootstrap nodes from environment", "count", len(nodes))
		return nodes
	}

	nodes, err := r.fromFile()
	switch {
	case err != nil:
		logger.Warn("failed to load bootstrap nodes file, using defaults", "error", err)
	case len(nodes) == 0:
		logger.Warn("bootstrap nodes file is empty, using defaults")
	default:
		logger.Info("using bootstrap nodes from file", "count", len(nodes))
		return nodes
	}

	logger.Info("using default bootstrap nodes", "count", len(fallback))

	return Fallback()
}

// fromEnv parses the comma separated list in EnvVar.
func (r *Resolver) fromEnv() []Node {
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	raw, ok := lookup(EnvVar)
	if !ok {
		return nil
	}

	var nodes []Node

	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}

		if !valid(addr) {
			continue
		}

		nodes = append(nodes, Node{
			Alias:     fmt.Sprintf("bootstrap-%d", len(nodes)+1),
			Multiaddr: addr,
		})
	}

	return nodes
}

// fromFile decodes the nodes file, dropping entries that are not multiaddrs.
func (r *Resolver) fromFile() ([]Node, error) {
	data := r.JSON
	if data == nil {
		data = embeddedNodes
	}

	if r.File != "" {
		b, err := os.ReadFile(r.File)
		if err != nil {
			return nil, fmt.Errorf("read %s:\n%w", r.File, err)
		}
		data = b
	}

	var f nodesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode bootstrap nodes:\n%w", err)
	}

	nodes := make([]Node, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		n.Multiaddr = strings.TrimSpace(n.Multiaddr)
		if !valid(n.Multiaddr) {
			continue
		}
		nodes = append(nodes, n)
	}

	return nodes, nil
}

// valid reports whether addr parses as a multiaddr, logging when it does not.
func valid(addr string) bool {
	if _, err := multiaddr.NewMultiaddr(addr); err != nil {
		logger.Warn("ignoring invalid bootstrap address", "addr", addr, "error", err)
		return false
	}

	return true
}
