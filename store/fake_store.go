package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FakeStore is an in-memory Store used in tests. Append listeners fire
// synchronously from Create, which keeps test ordering deterministic.
type FakeStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Record
	subscribers map[string][]*fakeSubscription

	// NotReady simulates a store whose initialization never completed.
	NotReady bool
	// FailOps makes every remote call fail, for exercising the
	// silent-empty read policy and surfaced write failures.
	FailOps bool
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		collections: make(map[string]map[string]Record),
		subscribers: make(map[string][]*fakeSubscription),
	}
}

type fakeSubscription struct {
	store      *FakeStore
	collection string
	fn         func(Record)
	cancelled  bool
}

func (s *fakeSubscription) Cancel() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.cancelled = true
}

func (f *FakeStore) Ready() bool {
	return !f.NotReady
}

func (f *FakeStore) Create(ctx context.Context, collection string, payload map[string]interface{}) (Record, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}
	if f.FailOps {
		return nil, errors.Wrap(ErrRemoteFailure, "create "+collection)
	}

	id := uuid.New().String()
	payload["id"] = id
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UnixNano() / int64(time.Millisecond)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]Record)
	}
	f.collections[collection][id] = Record(raw)
	subs := append([]*fakeSubscription{}, f.subscribers[collection]...)
	f.mu.Unlock()

	for _, sub := range subs {
		if !sub.cancelled {
			sub.fn(Record(raw))
		}
	}
	return Record(raw), nil
}

func (f *FakeStore) Put(ctx context.Context, collection, id string, payload map[string]interface{}) error {
	if !f.Ready() {
		return ErrNotReady
	}
	if f.FailOps {
		return errors.Wrap(ErrRemoteFailure, "put "+collection)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]Record)
	}
	f.collections[collection][id] = Record(raw)
	return nil
}

func (f *FakeStore) List(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if !f.Ready() {
		return []Record{}, nil
	}
	if f.FailOps {
		return nil, errors.Wrap(ErrRemoteFailure, "list "+collection)
	}
	f.mu.Lock()
	records := make([]Record, 0, len(f.collections[collection]))
	for _, rec := range f.collections[collection] {
		records = append(records, rec)
	}
	f.mu.Unlock()
	return ApplyFilter(records, filter), nil
}

func (f *FakeStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if !f.Ready() {
		return nil, nil
	}
	if f.FailOps {
		return nil, errors.Wrap(ErrRemoteFailure, "get "+collection)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (f *FakeStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if !f.Ready() {
		return ErrNotReady
	}
	if f.FailOps {
		return errors.Wrap(ErrRemoteFailure, "update "+collection)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := map[string]interface{}{}
	if rec, ok := f.collections[collection][id]; ok {
		if err := json.Unmarshal(rec, &existing); err != nil {
			return err
		}
	}
	for k, v := range fields {
		existing[k] = v
	}
	existing["lastUpdated"] = time.Now().UnixNano() / int64(time.Millisecond)

	raw, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]Record)
	}
	f.collections[collection][id] = Record(raw)
	return nil
}

func (f *FakeStore) Delete(ctx context.Context, collection, id string) error {
	if !f.Ready() {
		return ErrNotReady
	}
	if f.FailOps {
		return errors.Wrap(ErrRemoteFailure, "delete "+collection)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections[collection], id)
	return nil
}

func (f *FakeStore) SubscribeAppends(ctx context.Context, collection string, fn func(Record)) (Subscription, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}
	sub := &fakeSubscription{store: f, collection: collection, fn: fn}
	f.mu.Lock()
	f.subscribers[collection] = append(f.subscribers[collection], sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *FakeStore) Close() error {
	return nil
}

// Count reports the number of records in a collection, bypassing filters.
func (f *FakeStore) Count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}
