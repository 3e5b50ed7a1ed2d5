package store

import (
	"context"
	"encoding/json"
)

// Top-level collections of the remote store. Identifiers inside each
// collection are store-generated opaque strings.
const (
	CollectionUsers      = "users"
	CollectionPosts      = "posts"
	CollectionMessages   = "messages"
	CollectionStories    = "stories"
	CollectionNovels     = "novels"
	CollectionActivities = "activities"
	CollectionSettings   = "settings"

	// SettingsKey is the fixed id of the settings singleton record.
	SettingsKey = "app"
)

// Record is one flat record as stored remotely, JSON encoded.
type Record []byte

// Filter narrows a one-shot read. All filtering and ordering happens
// client-side on the materialized result set; the store offers no
// server-side pagination, so results are bounded only by collection size.
type Filter struct {
	// OrderBy sorts ascending by the named field. Numeric fields compare
	// numerically, everything else lexicographically.
	OrderBy string
	// EqualsField/EqualsValue keep only records whose field stringifies to
	// the given value.
	EqualsField string
	EqualsValue string
	// LastN keeps only the last N records of the (ordered) result. Used by
	// the maintenance sweep to cap how much gets scanned per run.
	LastN int
}

// Subscription is a live append listener handle. Cancel tears the listener
// down; callers must not leak subscriptions past their page lifecycle.
type Subscription interface {
	Cancel()
}

// Store is the collection-generic boundary to the remote keyed/append-log
// database. Implementations must gate every operation on readiness.
type Store interface {
	// Ready reports whether initialization completed and the remote handle
	// is usable.
	Ready() bool

	// Create allocates a new identifier, stamps timestamp, merges the id
	// into the payload, persists it and announces the append to live
	// subscribers. Returns the persisted record.
	Create(ctx context.Context, collection string, payload map[string]interface{}) (Record, error)

	// Put persists a record under a caller-chosen key, fully replacing any
	// previous content. Used for the settings singleton. Does not announce
	// an append.
	Put(ctx context.Context, collection, id string, payload map[string]interface{}) error

	// List performs a one-shot snapshot read of a whole collection,
	// filtered and ordered per f.
	List(ctx context.Context, collection string, f Filter) ([]Record, error)

	// Get performs a one-shot keyed read. A missing record yields
	// (nil, nil), not an error.
	Get(ctx context.Context, collection, id string) (Record, error)

	// UpdateFields merges fields into an existing record, stamping
	// lastUpdated. The record is created when missing; callers must not
	// rely on not-found detection here.
	UpdateFields(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// Delete removes a record. Only the maintenance sweep calls this.
	Delete(ctx context.Context, collection, id string) error

	// SubscribeAppends registers a persistent listener invoked once per
	// record appended after subscription time, in store append order.
	// Appends are not ordered relative to concurrently in-flight one-shot
	// reads.
	SubscribeAppends(ctx context.Context, collection string, fn func(Record)) (Subscription, error)

	Close() error
}

// ToPayload flattens any JSON-taggable value into the map form the generic
// primitives consume.
func ToPayload(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
