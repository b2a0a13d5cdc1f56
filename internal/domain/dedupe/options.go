package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize sets how many event ids are remembered.
// If maxSize > 0 the oldest id is forgotten once the bound is reached.
// If maxSize <= 0 ids are never forgotten.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
