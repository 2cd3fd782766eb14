package numpipe

import (
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultMaxCapacity bounds the storage New is willing to allocate.
const DefaultMaxCapacity = 1 << 20

type options struct {
	log           *zap.Logger
	meterProvider metric.MeterProvider
	maxCapacity   uint64
}

// Option configures a Channel at creation.
type Option func(*options)

// WithLogger sets the diagnostics sink. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMeterProvider sets the provider for channel metrics.
// The default is the global OpenTelemetry provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithMaxCapacity changes the largest capacity New accepts.
func WithMaxCapacity(n uint64) Option {
	return func(o *options) {
		if n > math.MaxInt64 {
			n = math.MaxInt64
		}
		o.maxCapacity = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		log:           zap.NewNop(),
		meterProvider: otel.GetMeterProvider(),
		maxCapacity:   DefaultMaxCapacity,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
