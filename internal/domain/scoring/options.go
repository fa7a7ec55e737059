package scoring

// Option applies a configuration option to the FocalScorer.
type Option func(*FocalScorer)

// WithParams sets the default scoring constants.
func WithParams(p Params) Option {
	return func(s *FocalScorer) {
		s.params = p
	}
}

// WithDefaultMu sets the gravitational parameter used when an input has none.
func WithDefaultMu(mu float64) Option {
	return func(s *FocalScorer) {
		if mu > 0 {
			s.mu = mu
		}
	}
}
