package engine

import (
	"context"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

type StoreListenerConfig struct {
	Name string
}

// StoreListener bridges remote message appends into the local runtime: each
// append is folded into the cache and re-announced on the event bus as a
// newMessage event. Failures on this passive path are logged and swallowed,
// the user is never interrupted by a sync hiccup.
type StoreListener struct {
	config  StoreListenerConfig
	adapter *store.Adapter
	cache   *cache.Manager
	bus     *bus.Bus
}

func NewStoreListener(config StoreListenerConfig, adapter *store.Adapter, c *cache.Manager, b *bus.Bus) *StoreListener {
	return &StoreListener{
		config:  config,
		adapter: adapter,
		cache:   c,
		bus:     b,
	}
}

func (l *StoreListener) RunModule(ctx context.Context) error {
	sub, err := l.adapter.SubscribeMessages(ctx, func(msg *model.Message) {
		l.cache.ApplyMessage(msg)
		if err := l.bus.Publish(model.EventNewMessage, msg); err != nil {
			Logger.Log.Errorf("publish newMessage for %s: %v", msg.Id, err)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	<-ctx.Done()
	return nil
}

func (l *StoreListener) Name() string {
	return l.config.Name
}
