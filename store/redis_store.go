package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

const (
	keyPrefix     = "mj36:"
	appendChannel = "mj36:appended:"

	// DefaultOpTimeout bounds every remote call so an unreachable store
	// cannot hang a caller forever.
	DefaultOpTimeout = 5 * time.Second
)

// RedisStore keeps each collection in one redis hash (field = record id,
// value = JSON blob) and announces appends on a per-collection pub/sub
// channel, which gives the same keyed-read / append-subscription surface the
// engine was built against.
type RedisStore struct {
	inner       *redis.Client
	opTimeout   time.Duration
	initialized bool
}

// NewRedisStore connects using the REDIS_HOST / REDIS_PORT / REDIS_PASSWD
// environment and verifies the connection with a ping. A failed ping leaves
// the store constructed but not ready: reads come back empty and writes
// fail until the next process restart reaches the server. opTimeout bounds
// every remote call; pass 0 for the default.
func NewRedisStore(opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	r := &RedisStore{
		inner: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
			Password: os.Getenv("REDIS_PASSWD"),
			DB:       0, // use default DB
		}),
		opTimeout: opTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := r.inner.Ping(ctx).Err(); err != nil {
		Logger.Log.Error("redis store initialization failed: ", err)
		return r
	}
	r.initialized = true
	return r
}

func (r *RedisStore) Ready() bool {
	return r.initialized && r.inner != nil
}

func (r *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// remoteErr maps a raw client error onto the store taxonomy.
func remoteErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, msg)
	}
	return errors.Wrapf(ErrRemoteFailure, "%s: %v", msg, err)
}

func hashKey(collection string) string {
	return keyPrefix + collection
}

func channelKey(collection string) string {
	return appendChannel + collection
}

func (r *RedisStore) Create(ctx context.Context, collection string, payload map[string]interface{}) (Record, error) {
	if !r.Ready() {
		return nil, ErrNotReady
	}

	id := uuid.New().String()
	payload["id"] = id
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UnixNano() / int64(time.Millisecond)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.inner.HSet(ctx, hashKey(collection), id, raw).Err(); err != nil {
		return nil, remoteErr(err, "create "+collection)
	}

	// Announce the append. Subscribers see records in publish order; a
	// record whose announcement fails is still persisted and will show up
	// on the next one-shot read.
	if err := r.inner.Publish(ctx, channelKey(collection), raw).Err(); err != nil {
		Logger.Log.Error("failed to announce append on ", collection, ": ", err)
	}

	return Record(raw), nil
}

func (r *RedisStore) Put(ctx context.Context, collection, id string, payload map[string]interface{}) error {
	if !r.Ready() {
		return ErrNotReady
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.inner.HSet(ctx, hashKey(collection), id, raw).Err(); err != nil {
		return remoteErr(err, "put "+collection)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, collection string, f Filter) ([]Record, error) {
	if !r.Ready() {
		return []Record{}, nil
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	values, err := r.inner.HGetAll(ctx, hashKey(collection)).Result()
	if err != nil {
		return nil, remoteErr(err, "list "+collection)
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		records = append(records, Record(v))
	}
	return ApplyFilter(records, f), nil
}

func (r *RedisStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if !r.Ready() {
		return nil, nil
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	raw, err := r.inner.HGet(ctx, hashKey(collection), id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, remoteErr(err, "get "+collection+"/"+id)
	}
	return Record(raw), nil
}

func (r *RedisStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if !r.Ready() {
		return ErrNotReady
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	// Merge into whatever is there. A missing record becomes a new record
	// holding only the merged fields, so callers cannot use this to detect
	// absence.
	existing := map[string]interface{}{}
	raw, err := r.inner.HGet(ctx, hashKey(collection), id).Result()
	if err != nil && err != redis.Nil {
		return remoteErr(err, "read before update "+collection+"/"+id)
	}
	if err == nil {
		if uerr := json.Unmarshal([]byte(raw), &existing); uerr != nil {
			return errors.Wrap(uerr, "decode record "+collection+"/"+id)
		}
	}

	for k, v := range fields {
		existing[k] = v
	}
	existing["lastUpdated"] = time.Now().UnixNano() / int64(time.Millisecond)

	merged, err := json.Marshal(existing)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	if err := r.inner.HSet(ctx, hashKey(collection), id, merged).Err(); err != nil {
		return remoteErr(err, "update "+collection+"/"+id)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if !r.Ready() {
		return ErrNotReady
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.inner.HDel(ctx, hashKey(collection), id).Err(); err != nil {
		return remoteErr(err, "delete "+collection+"/"+id)
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
}

func (s *redisSubscription) Cancel() {
	s.once.Do(func() {
		if err := s.pubsub.Close(); err != nil {
			Logger.Log.Error("failed to close append subscription: ", err)
		}
	})
}

func (r *RedisStore) SubscribeAppends(ctx context.Context, collection string, fn func(Record)) (Subscription, error) {
	if !r.Ready() {
		return nil, ErrNotReady
	}

	pubsub := r.inner.Subscribe(ctx, channelKey(collection))
	sub := &redisSubscription{pubsub: pubsub}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Cancel()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(Record(msg.Payload))
			}
		}
	}()

	return sub, nil
}

func (r *RedisStore) Close() error {
	r.initialized = false
	return r.inner.Close()
}

// ApplyFilter materializes filtering and ordering client-side. There is no
// server-side pagination: the whole collection is already in memory by the
// time this runs.
func ApplyFilter(records []Record, f Filter) []Record {
	parsed := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		m := map[string]interface{}{}
		if err := json.Unmarshal(rec, &m); err != nil {
			Logger.Log.Error("skipping undecodable record: ", err)
			m = map[string]interface{}{}
		}
		parsed[i] = m
	}

	kept := []int{}
	for i := range records {
		if f.EqualsField != "" && fmt.Sprintf("%v", parsed[i][f.EqualsField]) != f.EqualsValue {
			continue
		}
		kept = append(kept, i)
	}

	if f.OrderBy != "" {
		sort.SliceStable(kept, func(a, b int) bool {
			return fieldLess(parsed[kept[a]][f.OrderBy], parsed[kept[b]][f.OrderBy])
		})
	}

	if f.LastN > 0 && len(kept) > f.LastN {
		kept = kept[len(kept)-f.LastN:]
	}

	res := make([]Record, 0, len(kept))
	for _, i := range kept {
		res = append(res, records[i])
	}
	return res
}

func fieldLess(a, b interface{}) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}
