package repository

import "time"

const defaultMetricsUpdateInterval = 5 * time.Second

type options struct {
	indexes               map[string][]string
	feed                  *Feed
	metricsUpdateInterval time.Duration
}

// Option applies a configuration option to a Store implementation.
type Option func(*options)

// WithIndex declares an index on fields of collection.
func WithIndex(collection string, fields ...string) Option {
	return func(o *options) {
		if o.indexes == nil {
			o.indexes = make(map[string][]string)
		}
		o.indexes[collection] = append(o.indexes[collection], fields...)
	}
}

// WithIndexes declares several indexes at once.
func WithIndexes(defs map[string][]string) Option {
	return func(o *options) {
		for collection, fields := range defs {
			WithIndex(collection, fields...)(o)
		}
	}
}

// WithFeed publishes writes to feed instead of a private synchronous one.
func WithFeed(feed *Feed) Option {
	return func(o *options) {
		if feed != nil {
			o.feed = feed
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

func applyOptions(opts []Option) (*options, indexSet, error) {
	o := &options{metricsUpdateInterval: defaultMetricsUpdateInterval}
	for _, opt := range opts {
		opt(o)
	}
	if o.feed == nil {
		o.feed = NewFeed()
	}
	idx, err := newIndexSet(o.indexes)
	if err != nil {
		return nil, nil, err
	}
	return o, idx, nil
}
