// Package bus is the process-wide change-notification registry. The store
// listener and the local cache publish named events; the view-state engine
// and the push gateway subscribe. It rides on a watermill gochannel pub/sub,
// the same in-process event bus the rest of the engine modules use.
package bus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

// Watcher handles one delivered event. Watchers run on their own goroutine;
// a panicking watcher is recovered and logged and never affects delivery to
// any other watcher.
type Watcher func(event string, payload []byte)

type Bus struct {
	channel *gochannel.GoChannel
}

// New builds a bus. bufferSize bounds the per-subscriber output channel.
// Publishing blocks until every subscriber acked the message; the subscribe
// loop acks unconditionally right after the watcher returns, so this only
// serializes handoff and is what keeps per-watcher delivery in publish
// order across rapid publishes.
func New(bufferSize int64) *Bus {
	return &Bus{
		channel: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            bufferSize,
				BlockPublishUntilSubscriberAck: true,
			},
			watermill.NewStdLogger(false, false),
		),
	}
}

// Publish delivers payload to every watcher registered for event and
// returns once each of them has handled it. Every watcher sees events of
// one topic in publish order; no ordering holds across watchers.
func (b *Bus) Publish(event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event payload")
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	return b.channel.Publish(event, msg)
}

// Subscribe registers a watcher for event. The watcher is torn down when
// ctx is cancelled, which is the unregistration path: callers that outlive
// a page-like lifecycle cancel their context instead of leaking watchers.
func (b *Bus) Subscribe(ctx context.Context, event string, w Watcher) error {
	messages, err := b.channel.Subscribe(ctx, event)
	if err != nil {
		return errors.Wrap(err, "subscribe "+event)
	}

	go func() {
		for msg := range messages {
			invoke(w, event, msg.Payload)
			msg.Ack()
		}
	}()
	return nil
}

// invoke isolates watcher failures: one misbehaving watcher must not stop
// the remaining watchers from seeing the event.
func invoke(w Watcher, event string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Log.Error("watcher for event ", event, " panicked: ", r)
		}
	}()
	w(event, payload)
}

func (b *Bus) Close() error {
	return b.channel.Close()
}
