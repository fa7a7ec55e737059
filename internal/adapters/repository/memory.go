package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/fgoc/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: S DESC, then ID ASC (deterministic). "less" means ranks earlier,
// so in-order traversal yields the most anomalous series first. Only scored
// records enter the treap; failed records live in the map alone.

type node struct {
	id    string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based in-order position of (score, id), or 0.
func rankOf(n *node, id string, score float64) int {
	before := 0
	for n != nil {
		switch {
		case score == n.score && id == n.id:
			return before + nsize(n.left) + 1
		case less(score, id, n.score, n.id):
			n = n.left
		default:
			before += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit ids in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// MemoryStore keeps every record in memory with an order-statistic treap
// over scored records.
type MemoryStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]Record
	rng  *rand.Rand
	seed uint64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[string]Record),
		seed: uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	metrics.UpdateRepositoryRecords(0)
	return s
}

// Put implements Store.Put in O(log n) expected time.
func (s *MemoryStore) Put(ctx context.Context, r Record) error { //nolint:gocritic // hugeParam: Record is stored by value
	if r.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	if old, ok := s.byID[r.ID]; ok && old.Status == StatusScored {
		s.root = deleteNode(s.root, old.ID, old.S)
	}
	r.Rank = 0
	s.byID[r.ID] = r
	if r.Status == StatusScored {
		s.root = insert(s.root, r.ID, r.S, s.rng.Uint64())
	}
	count := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecords(count)
	return nil
}

// Get returns the record with its current anomaly rank in O(log n).
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	start := time.Now()
	defer observeQuery(start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Record{}, ErrNotFound
	}
	if r.Status == StatusScored {
		r.Rank = rankOf(s.root, r.ID, r.S)
	}
	return r, nil
}

// TopN returns the n most anomalous scored records.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]Record, error) {
	start := time.Now()
	defer observeQuery(start)

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, nsize(s.root)))
	collectTopN(s.root, n, &ids)
	out := make([]Record, len(ids))
	for i, id := range ids {
		out[i] = s.byID[id]
		out[i].Rank = i + 1
	}
	return out, nil
}

// Count returns the total number of records.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}
