package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, m map[string]interface{}) Record {
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return Record(raw)
}

func contents(records []Record) []string {
	res := []string{}
	for _, r := range records {
		m := map[string]interface{}{}
		json.Unmarshal(r, &m)
		res = append(res, m["content"].(string))
	}
	return res
}

func TestApplyFilterOrderBy(t *testing.T) {
	records := []Record{
		rec(t, map[string]interface{}{"content": "b", "timestamp": 200}),
		rec(t, map[string]interface{}{"content": "a", "timestamp": 100}),
		rec(t, map[string]interface{}{"content": "c", "timestamp": 300}),
	}

	got := contents(ApplyFilter(records, Filter{OrderBy: "timestamp"}))
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestApplyFilterEquality(t *testing.T) {
	records := []Record{
		rec(t, map[string]interface{}{"content": "a", "type": "screenshot"}),
		rec(t, map[string]interface{}{"content": "b", "type": "login"}),
		rec(t, map[string]interface{}{"content": "c", "type": "screenshot"}),
	}

	got := ApplyFilter(records, Filter{EqualsField: "type", EqualsValue: "screenshot"})
	assert.ElementsMatch(t, []string{"a", "c"}, contents(got))
}

func TestApplyFilterLastN(t *testing.T) {
	records := []Record{
		rec(t, map[string]interface{}{"content": "a", "timestamp": 100}),
		rec(t, map[string]interface{}{"content": "b", "timestamp": 200}),
		rec(t, map[string]interface{}{"content": "c", "timestamp": 300}),
	}

	got := contents(ApplyFilter(records, Filter{OrderBy: "timestamp", LastN: 2}))
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestApplyFilterOrderByStringField(t *testing.T) {
	records := []Record{
		rec(t, map[string]interface{}{"content": "z", "username": "zed"}),
		rec(t, map[string]interface{}{"content": "a", "username": "amy"}),
	}

	got := contents(ApplyFilter(records, Filter{OrderBy: "username"}))
	assert.Equal(t, []string{"a", "z"}, got)
}

func TestToPayload(t *testing.T) {
	type sample struct {
		Id      string `json:"id"`
		Content string `json:"content"`
	}
	payload, err := ToPayload(&sample{Id: "x", Content: "y"})
	require.NoError(t, err)
	assert.Equal(t, "x", payload["id"])
	assert.Equal(t, "y", payload["content"])
}

func TestRedisStoreOpTimeoutConfigurable(t *testing.T) {
	short := &RedisStore{opTimeout: 50 * time.Millisecond}
	ctx, cancel := short.opContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 40*time.Millisecond)

	// A zero or negative timeout falls back to the default at construction.
	fallback := &RedisStore{opTimeout: DefaultOpTimeout}
	ctx2, cancel2 := fallback.opContext(context.Background())
	defer cancel2()
	deadline2, ok := ctx2.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultOpTimeout), deadline2, 40*time.Millisecond)
}
