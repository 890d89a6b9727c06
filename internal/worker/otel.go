package worker

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dontlook/stalker/internal/worker"

type instruments struct {
	ticks       metric.Int64Counter
	transitions metric.Int64Counter
	distance    metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	i := &instruments{}

	var err error
	i.ticks, err = m.Int64Counter(
		"pursuer.ticks",
		metric.WithDescription("Pursuer ticks evaluated, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	i.transitions, err = m.Int64Counter(
		"pursuer.transitions",
		metric.WithDescription("Motion state changes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transition counter: %w", err)
	}

	i.distance, err = m.Float64Histogram(
		"pursuer.target.distance",
		metric.WithDescription("Distance between pursuer and target at each evaluated tick"),
		metric.WithUnit("m"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating distance histogram: %w", err)
	}

	return i, nil
}
