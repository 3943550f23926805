package graph

import "fmt"

type options struct {
	depth         int
	filter        Predicate
	endpointLabel string
}

// Option configures a Walk or RelatedSet at construction.
type Option func(*options)

// WithDepth bounds a traversal to n hops. n must be at least 1.
func WithDepth(n int) Option {
	return func(o *options) {
		o.depth = n
	}
}

// WithFilter keeps only nodes pred accepts in traversal output.
func WithFilter(pred Predicate) Option {
	return func(o *options) {
		o.filter = pred
	}
}

// WithEndpointLabel requires the far endpoint of edges created through a
// RelatedSet to carry label. The empty label disables the check.
func WithEndpointLabel(label string) Option {
	return func(o *options) {
		o.endpointLabel = label
	}
}

func applyOptions(opts []Option) (options, error) {
	o := options{depth: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.depth < 1 {
		return options{}, fmt.Errorf("%w: depth %d is below 1", ErrInvalidArgument, o.depth)
	}
	return o, nil
}
