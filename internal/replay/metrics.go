package replay

import (
	"github.com/gabapcia/tolclient/internal/pkg/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type replayInstruments struct {
	blocks metric.Int64Counter
}

var instruments = newReplayInstruments()

func newReplayInstruments() replayInstruments {
	blocks, err := telemetry.Meter("replay").Int64Counter("replay.blocks",
		metric.WithDescription("Historical blocks emitted by replays"),
	)
	if err != nil {
		blocks = noop.Int64Counter{}
	}

	return replayInstruments{
		blocks: blocks,
	}
}
