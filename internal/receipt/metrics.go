package receipt

import (
	"github.com/gabapcia/tolclient/internal/pkg/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type receiptInstruments struct {
	attempts metric.Int64Histogram
}

var instruments = newReceiptInstruments()

func newReceiptInstruments() receiptInstruments {
	attempts, err := telemetry.Meter("receipt").Int64Histogram("receipt.attempts",
		metric.WithDescription("Lookups made per receipt poll"),
	)
	if err != nil {
		attempts = noop.Int64Histogram{}
	}

	return receiptInstruments{
		attempts: attempts,
	}
}
