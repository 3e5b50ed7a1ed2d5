package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
)

func newTestManager() (*Manager, *store.FakeStore, *bus.Bus) {
	fake := store.NewFakeStore()
	b := bus.New(16)
	return NewManager(store.NewAdapter(fake), b), fake, b
}

func TestPostsReturnsCopies(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()
	ctx := context.Background()

	_, err := mgr.adapter.SavePost(ctx, "u1", "original", "")
	require.NoError(t, err)

	first := mgr.Posts(ctx)
	require.Len(t, first, 1)
	first[0].Content = "mutated"
	first[0].LikedBy = append(first[0].LikedBy, "evil")

	second := mgr.Posts(ctx)
	require.Len(t, second, 1)
	assert.Equal(t, "original", second[0].Content)
	assert.Empty(t, second[0].LikedBy)
}

func TestMessagesProjectionAndApply(t *testing.T) {
	mgr, fake, b := newTestManager()
	defer b.Close()
	ctx := context.Background()

	_, err := fake.Create(ctx, store.CollectionMessages, map[string]interface{}{
		"senderId": "a", "receiverId": "b", "content": "first",
		"type": "text", "timestamp": int64(100),
	})
	require.NoError(t, err)

	mgr.LoadMessages(ctx)
	require.Len(t, mgr.Messages(), 1)

	mgr.ApplyMessage(&model.Message{Id: "m2", Content: "pushed", Timestamp: 200})
	messages := mgr.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "pushed", messages[1].Content)

	// Duplicate pushes are folded once.
	mgr.ApplyMessage(&model.Message{Id: "m2", Content: "pushed", Timestamp: 200})
	assert.Len(t, mgr.Messages(), 2)
}

func TestSettingsDefaultsWhenAbsent(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()

	s := mgr.Settings(context.Background())
	require.NotNil(t, s)
	assert.Equal(t, model.DefaultTheme, s.Theme)
	assert.Equal(t, model.DefaultLanguage, s.Language)
	assert.True(t, s.FeatureEnabled("posts"))
}

func TestUpdateSettingsPublishesFeatureChanged(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 1)
	require.NoError(t, b.Subscribe(ctx, model.EventFeatureChanged, func(event string, payload []byte) {
		got <- payload
	}))

	err := mgr.UpdateSettings(ctx, SettingsPatch{Features: map[string]bool{"stories": false}})
	require.NoError(t, err)

	select {
	case payload := <-got:
		s := &model.Settings{}
		require.NoError(t, json.Unmarshal(payload, s))
		assert.False(t, s.FeatureEnabled("stories"))
	case <-time.After(2 * time.Second):
		t.Fatal("featureChanged was not published")
	}

	// Theme-only updates must not announce a feature change.
	require.NoError(t, mgr.UpdateSettings(ctx, SettingsPatch{Theme: "dark"}))
	select {
	case <-got:
		t.Fatal("theme change published featureChanged")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, "dark", mgr.Settings(ctx).Theme)
}

func TestUpdateSettingsNoEventWhenFlagUnchanged(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mgr.UpdateSettings(ctx, SettingsPatch{Features: map[string]bool{"stories": false}}))

	got := make(chan []byte, 1)
	require.NoError(t, b.Subscribe(ctx, model.EventFeatureChanged, func(event string, payload []byte) {
		got <- payload
	}))

	require.NoError(t, mgr.UpdateSettings(ctx, SettingsPatch{Features: map[string]bool{"stories": false}}))
	select {
	case <-got:
		t.Fatal("unchanged flag published featureChanged")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUserByIDCachesAndCopies(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()
	ctx := context.Background()

	created, err := mgr.adapter.AddUser(ctx, "jehad", "hash", "", false)
	require.NoError(t, err)

	u := mgr.UserByID(ctx, created.Id)
	require.NotNil(t, u)
	u.Username = "mutated"

	again := mgr.UserByID(ctx, created.Id)
	require.NotNil(t, again)
	assert.Equal(t, "jehad", again.Username)

	assert.Nil(t, mgr.UserByID(ctx, "ghost"))
}

func TestAddWatcherReceivesBothEvents(t *testing.T) {
	mgr, _, b := newTestManager()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan string, 2)
	require.NoError(t, mgr.AddWatcher(ctx, func(event string, payload []byte) {
		events <- event
	}))

	require.NoError(t, b.Publish(model.EventNewMessage, &model.Message{Content: "hi"}))
	require.NoError(t, mgr.UpdateSettings(ctx, SettingsPatch{Features: map[string]bool{"novels": false}}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			seen[e] = true
		case <-time.After(2 * time.Second):
			t.Fatal("watcher missed an event")
		}
	}
	assert.True(t, seen[model.EventNewMessage])
	assert.True(t, seen[model.EventFeatureChanged])
}
