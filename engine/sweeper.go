package engine

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/ggeejehd-eng/mj36/store"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

type SweeperConfig struct {
	Name string
	// Run the sweep every other interval.
	Every time.Duration
}

// Sweeper periodically evicts expired stories and aged activities from the
// live store, archiving each victim before deletion. One sweep runs
// immediately on startup so a long interval does not postpone the first
// cleanup after a restart.
type Sweeper struct {
	config  SweeperConfig
	adapter *store.Adapter
	sink    store.ArchiveSink
	statsd  *statsd.Client
}

func NewSweeper(config SweeperConfig, adapter *store.Adapter, sink store.ArchiveSink, sd *statsd.Client) *Sweeper {
	return &Sweeper{
		config:  config,
		adapter: adapter,
		sink:    sink,
		statsd:  sd,
	}
}

func (s *Sweeper) RunModule(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.config.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	stories, activities := s.adapter.CleanupOldData(ctx, s.sink)
	Logger.Log.Infof("sweep removed %d stories and %d activities", stories, activities)

	if s.statsd == nil {
		return
	}
	if err := s.statsd.Count("mj36.sweep.stories_removed", int64(stories), nil, 1); err != nil {
		Logger.Log.Infoln("cannot report sweep stories counter")
	}
	if err := s.statsd.Count("mj36.sweep.activities_removed", int64(activities), nil, 1); err != nil {
		Logger.Log.Infoln("cannot report sweep activities counter")
	}
}

func (s *Sweeper) Name() string {
	return s.config.Name
}
