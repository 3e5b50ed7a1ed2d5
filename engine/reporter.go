package engine

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/model"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

type ReporterConfig struct {
	Name string
	// Flush buffered counters every other interval.
	FlushEvery time.Duration
}

// Reporter's job is to listen to the event bus and forward per-event counters
// to Datadog (or other service if there's any) for monitoring purpose.
type Reporter struct {
	config ReporterConfig
	statsd *statsd.Client
	bus    *bus.Bus
}

func NewReporter(config ReporterConfig, sd *statsd.Client, b *bus.Bus) *Reporter {
	return &Reporter{
		config: config,
		statsd: sd,
		bus:    b,
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := []string{
		model.EventNewMessage,
		model.EventFeatureChanged,
		model.EventSectionRendered,
	}
	for _, event := range events {
		event := event
		err := r.bus.Subscribe(ctx, event, func(_ string, _ []byte) {
			if err := r.statsd.Incr("mj36.event."+event, nil, 1); err != nil {
				Logger.Log.Infoln("cannot report event counter for ", event)
			}
		})
		if err != nil {
			return err
		}
	}

	// The statsd client buffers; push buffered counters out on a fixed
	// cadence so a quiet bus still reports.
	flushEvery := r.config.FlushEvery
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.statsd.Flush(); err != nil {
				Logger.Log.Infoln("cannot flush statsd counters")
			}
		}
	}
}

func (r *Reporter) Name() string {
	return r.config.Name
}
