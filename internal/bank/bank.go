// Package bank holds the static, human-authored problem bank. Problems are
// grouped by curriculum node and loaded from YAML files; the bank remembers
// which problems each node has already issued so it only hands out unseen
// ones.
package bank

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/suykerbuyk/verve/internal/problem"
)

// File is the on-disk shape of one bank file.
type File struct {
	Node     string         `yaml:"node"`
	Zone     string         `yaml:"zone"`
	Problems []problem.Spec `yaml:"problems"`
}

type node struct {
	zone  string
	items []problem.Spec
}

// Bank is safe for concurrent use.
type Bank struct {
	mu    sync.RWMutex
	nodes map[string]*node
	seen  map[string]map[string]bool
	rng   *rand.Rand
	log   *zap.Logger
}

// Option configures a Bank.
type Option func(*Bank)

// WithRand fixes the random source used to pick among unseen problems.
func WithRand(rng *rand.Rand) Option {
	return func(b *Bank) { b.rng = rng }
}

// WithLogger sets the bank's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) {
		if l != nil {
			b.log = l
		}
	}
}

// New returns an empty bank.
func New(opts ...Option) *Bank {
	b := &Bank{
		nodes: make(map[string]*node),
		seen:  make(map[string]map[string]bool),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		seed := uint64(time.Now().UnixNano())
		b.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return b
}

// Add appends problems to a node, creating it if needed. Problems that fail
// validation or reuse an id already in the bank are skipped and counted in
// the returned error. Missing ids are assigned as NODE-N, skipping any id
// already taken.
func (b *Bank) Add(nodeID, zone string, specs ...problem.Spec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addTo(b.nodes, nodeID, zone, specs)
}

func (b *Bank) addTo(nodes map[string]*node, nodeID, zone string, specs []problem.Spec) error {
	if nodeID == "" {
		return fmt.Errorf("bank entry without node id")
	}
	n, ok := nodes[nodeID]
	if !ok {
		n = &node{zone: zone}
		nodes[nodeID] = n
	} else if n.zone == "" {
		n.zone = zone
	}

	// Ids are unique bank-wide: sessions track issued problems by id alone.
	taken := make(map[string]bool)
	for _, other := range nodes {
		for _, s := range other.items {
			taken[s.ID] = true
		}
	}
	explicit := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.ID != "" {
			explicit[s.ID] = true
		}
	}

	skipped, seq := 0, len(n.items)
	for i, s := range specs {
		if s.ID == "" {
			for {
				seq++
				s.ID = fmt.Sprintf("%s-%d", nodeID, seq)
				if !taken[s.ID] && !explicit[s.ID] {
					break
				}
			}
		}
		err := problem.Validate(s)
		if err == nil && taken[s.ID] {
			err = fmt.Errorf("duplicate problem id %q", s.ID)
		}
		if err != nil {
			b.log.Warn("skipping bank problem",
				zap.String("node", nodeID),
				zap.Int("index", i),
				zap.Error(err))
			skipped++
			continue
		}
		taken[s.ID] = true
		s = s.Clone()
		s.NodeID = nodeID
		s.Zone = n.zone
		s.Finalize(problem.ProvenanceStatic)
		n.items = append(n.items, s)
	}
	if skipped > 0 {
		return fmt.Errorf("node %s: %d problems skipped", nodeID, skipped)
	}
	return nil
}

// LoadDir replaces the bank's contents with every *.yaml and *.yml file in
// dir. Seen history survives a reload. Files that fail to parse are logged
// and skipped; the first such error is returned after the rest load.
func (b *Bank) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read bank dir: %w", err)
	}

	nodes := make(map[string]*node)
	var firstErr error
	files := 0
	for _, e := range entries {
		if e.IsDir() || !isBankFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := ReadFile(path)
		if err == nil {
			err = b.addTo(nodes, f.Node, f.Zone, f.Problems)
		}
		if err != nil {
			b.log.Warn("bank file", zap.String("path", path), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", e.Name(), err)
			}
			continue
		}
		files++
	}

	b.mu.Lock()
	b.nodes = nodes
	b.mu.Unlock()

	b.log.Info("bank loaded",
		zap.String("dir", dir),
		zap.Int("files", files),
		zap.Int("nodes", len(nodes)))
	return firstErr
}

// ReadFile parses one bank file.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(f.Node) == "" {
		return f, fmt.Errorf("%s: missing node", filepath.Base(path))
	}
	return f, nil
}

func isBankFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Next returns a random problem from nodeID that has not been issued yet and
// marks it seen. ok is false when the node is unknown or exhausted.
func (b *Bank) Next(nodeID string) (spec problem.Spec, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, found := b.nodes[nodeID]
	if !found {
		return problem.Spec{}, false
	}
	seen := b.seen[nodeID]
	var unseen []int
	for i, s := range n.items {
		if !seen[s.ID] {
			unseen = append(unseen, i)
		}
	}
	if len(unseen) == 0 {
		return problem.Spec{}, false
	}

	pick := n.items[unseen[b.rng.IntN(len(unseen))]]
	b.markLocked(nodeID, pick.ID)
	return pick.Clone(), true
}

// MarkSeen records problems as already issued, e.g. from a learner's
// completion history.
func (b *Bank) MarkSeen(nodeID string, ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.markLocked(nodeID, id)
	}
}

func (b *Bank) markLocked(nodeID, id string) {
	s, ok := b.seen[nodeID]
	if !ok {
		s = make(map[string]bool)
		b.seen[nodeID] = s
	}
	s[id] = true
}

// ResetSeen forgets the issue history of nodeID.
func (b *Bank) ResetSeen(nodeID string) {
	b.mu.Lock()
	delete(b.seen, nodeID)
	b.mu.Unlock()
}

// ZoneFor returns the zone a node belongs to.
func (b *Bank) ZoneFor(nodeID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[nodeID]
	if !ok {
		return "", false
	}
	return n.zone, true
}

// Unseen counts the problems nodeID can still issue.
func (b *Bank) Unseen(nodeID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[nodeID]
	if !ok {
		return 0
	}
	count := 0
	for _, s := range n.items {
		if !b.seen[nodeID][s.ID] {
			count++
		}
	}
	return count
}

// Nodes lists node ids, sorted.
func (b *Bank) Nodes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.nodes))
	for id := range b.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
