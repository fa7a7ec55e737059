package shortarc

// Option applies a configuration option to the classifier.
type Option func(*config)

type config struct {
	alpha     float64
	beta      float64
	threshold float64
}

func defaultConfig() config {
	return config{alpha: 8, beta: 4, threshold: 0.25}
}

// WithAlpha sets the weight on the great-circle residual.
func WithAlpha(a float64) Option {
	return func(c *config) { c.alpha = a }
}

// WithBeta sets the weight on the mean curvature.
func WithBeta(b float64) Option {
	return func(c *config) { c.beta = b }
}

// WithThreshold sets the score above which an arc is flagged.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}
