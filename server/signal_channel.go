package server

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ggeejehd-eng/mj36/model"
)

// SignalChannels contains all structures that handle user signal channels.
// All internal state should not be touched directly but managed through its
// public receivers.
type SignalChannels struct {
	// connectionMap maps from user id to the user's active signal channels.
	// User's active channels are represented in the form of a map from channel
	// id (uuid) to the actual channel, so that deletion of a channel is O(1).
	// Each connectionMap entry is deleted once all of the user's active
	// channels are closed.
	// Multiple devices of the same user cannot share a channel, each websocket
	// gets its own.
	connectionMap map[string]map[string]chan *model.Signal

	// Adding/Removing a subscription grabs the write lock, pushing a Signal
	// grabs a read lock. A per-user lock would scale better but a shared lock
	// is enough at this size.
	mu sync.RWMutex
}

func NewSignalChannels() *SignalChannels {
	return &SignalChannels{
		connectionMap: make(map[string]map[string]chan *model.Signal),
	}
}

// cleanUp a single connection when the context terminates. If all of a user's
// active connections terminate, clean up the user's top-level entry as well.
func (sc *SignalChannels) cleanUp(ctx context.Context, chID string, userID string) {
	<-ctx.Done()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	delete(sc.connectionMap[userID], chID)
	if len(sc.connectionMap[userID]) == 0 {
		delete(sc.connectionMap, userID)
	}
}

// Thread-safe
func (sc *SignalChannels) AddNewConnection(ctx context.Context, userID string) (chan *model.Signal, string) {
	chID := "signal_channel_" + uuid.New().String()
	ch := make(chan *model.Signal, 1)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, ok := sc.connectionMap[userID]; !ok {
		sc.connectionMap[userID] = make(map[string]chan *model.Signal)
	}

	sc.connectionMap[userID][chID] = ch

	// Spin up a background garbage collector.
	go sc.cleanUp(ctx, chID, userID)

	return ch, chID
}

// Thread-safe
func (sc *SignalChannels) GetActiveConnectionsCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	count := 0
	for _, mp := range sc.connectionMap {
		count += len(mp)
	}
	return count
}

// Thread-safe
func (sc *SignalChannels) PushSignalToUser(signal *model.Signal, userID string) error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if _, ok := sc.connectionMap[userID]; !ok {
		return errors.New("no active connection for user: " + userID)
	}
	for _, ch := range sc.connectionMap[userID] {
		select {
		case ch <- signal:
		default:
			// A reader that stopped draining must not wedge the push path.
		}
	}
	return nil
}

// PushSignalToAll fans a signal out to every connected channel. Used for
// render signals, which every open client mirrors.
func (sc *SignalChannels) PushSignalToAll(signal *model.Signal) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	for _, mp := range sc.connectionMap {
		for _, ch := range mp {
			select {
			case ch <- signal:
			default:
			}
		}
	}
}
