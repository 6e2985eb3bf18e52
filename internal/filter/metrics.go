package filter

import (
	"context"

	"github.com/gabapcia/tolclient/internal/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type filterInstruments struct {
	polls      metric.Int64Counter
	items      metric.Int64Counter
	pollErrors metric.Int64Counter
}

var instruments = newFilterInstruments()

func newFilterInstruments() filterInstruments {
	meter := telemetry.Meter("filter")

	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}

	return filterInstruments{
		polls:      counter("filter.polls", "Filter polls issued"),
		items:      counter("filter.items", "Items returned by filter polls"),
		pollErrors: counter("filter.poll_errors", "Filter polls that failed"),
	}
}

func (i filterInstruments) recordPoll(ctx context.Context, name string, items int, err error) {
	attrs := metric.WithAttributes(attribute.String("filter.name", name))

	i.polls.Add(ctx, 1, attrs)
	if err != nil {
		i.pollErrors.Add(ctx, 1, attrs)
		return
	}
	i.items.Add(ctx, int64(items), attrs)
}
