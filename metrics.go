package numpipe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aradilov/numpipe"

type instruments struct {
	writes      metric.Int64Counter
	reads       metric.Int64Counter
	blocked     metric.Int64Counter
	interrupted metric.Int64Counter
	depth       metric.Int64ObservableGauge
	openers     metric.Int64ObservableGauge

	registration metric.Registration
	attrs        [2]metric.MeasurementOption
}

func newInstruments(m metric.Meter, c *Channel) (*instruments, error) {
	ins := &instruments{
		attrs: [2]metric.MeasurementOption{
			opRead:  metric.WithAttributes(attribute.String("op", opRead.String())),
			opWrite: metric.WithAttributes(attribute.String("op", opWrite.String())),
		},
	}

	var err error
	ins.writes, err = m.Int64Counter(
		"numpipe.writes",
		metric.WithDescription("Integers written to the channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating writes counter: %w", err)
	}

	ins.reads, err = m.Int64Counter(
		"numpipe.reads",
		metric.WithDescription("Integers read from the channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reads counter: %w", err)
	}

	ins.blocked, err = m.Int64Counter(
		"numpipe.blocked",
		metric.WithDescription("Operations that had to wait for a slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating blocked counter: %w", err)
	}

	ins.interrupted, err = m.Int64Counter(
		"numpipe.interrupted",
		metric.WithDescription("Operations abandoned because their context ended"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating interrupted counter: %w", err)
	}

	ins.depth, err = m.Int64ObservableGauge(
		"numpipe.depth",
		metric.WithDescription("Integers currently stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating depth gauge: %w", err)
	}

	ins.openers, err = m.Int64ObservableGauge(
		"numpipe.openers",
		metric.WithDescription("Open handles"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openers gauge: %w", err)
	}

	ins.registration, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(ins.depth, c.depth.Load())
			o.ObserveInt64(ins.openers, c.openers.Load())
			return nil
		},
		ins.depth, ins.openers,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return ins, nil
}

func (ins *instruments) unregister() error {
	return ins.registration.Unregister()
}
