package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed fixes the treap priority sequence. Useful for reproducible tests.
func WithSeed(seed uint64) Option {
	return func(s *MemoryStore) {
		s.seed = seed
	}
}
