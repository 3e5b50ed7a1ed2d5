// Package cache is the local data manager: a disposable, rebuildable
// projection of the remote collections. The remote store stays the sole
// source of truth; everything here can be thrown away and refetched.
package cache

import (
	"context"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

type Manager struct {
	adapter *store.Adapter
	bus     *bus.Bus

	// Concurrent access from the HTTP handlers, the engine modules and the
	// bus watchers.
	mu       sync.RWMutex
	messages []*model.Message
	users    map[string]*model.User
	settings *model.Settings
}

func NewManager(adapter *store.Adapter, b *bus.Bus) *Manager {
	return &Manager{
		adapter: adapter,
		bus:     b,
		users:   make(map[string]*model.User),
	}
}

// AddWatcher registers a callback for the change-notification events the
// presentation layer cares about. The callback is torn down when ctx is
// cancelled.
func (m *Manager) AddWatcher(ctx context.Context, watcher bus.Watcher) error {
	for _, event := range []string{model.EventFeatureChanged, model.EventNewMessage} {
		if err := m.bus.Subscribe(ctx, event, watcher); err != nil {
			return err
		}
	}
	return nil
}

// Posts reads through to the store on every call: the posts projection is
// rebuilt, never patched.
func (m *Manager) Posts(ctx context.Context) []*model.Post {
	posts := m.adapter.Posts(ctx)
	out := []*model.Post{}
	if err := copier.Copy(&out, &posts); err != nil {
		Logger.Log.Error("failed to copy posts projection: ", err)
		return []*model.Post{}
	}
	return out
}

// LoadMessages rebuilds the message projection from a one-shot read. Called
// once at startup; afterwards ApplyMessage keeps it current from pushes.
// A message appended between the read and the subscription start may arrive
// through both paths, which is why ApplyMessage dedupes by id.
func (m *Manager) LoadMessages(ctx context.Context) {
	messages := m.adapter.ExistingMessages(ctx)
	m.mu.Lock()
	m.messages = messages
	m.mu.Unlock()
}

// Messages returns the cached projection in display order (timestamp
// ascending, the order LoadMessages fetched and ApplyMessage maintains).
func (m *Manager) Messages() []*model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*model.Message{}
	if err := copier.Copy(&out, &m.messages); err != nil {
		Logger.Log.Error("failed to copy messages projection: ", err)
		return []*model.Message{}
	}
	return out
}

// ApplyMessage folds one pushed message into the projection.
func (m *Manager) ApplyMessage(msg *model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages {
		if existing.Id == msg.Id {
			return
		}
	}
	m.messages = append(m.messages, msg)
}

func (m *Manager) ActiveStories(ctx context.Context) []*model.Story {
	stories := m.adapter.ActiveStories(ctx)
	out := []*model.Story{}
	if err := copier.Copy(&out, &stories); err != nil {
		Logger.Log.Error("failed to copy stories projection: ", err)
		return []*model.Story{}
	}
	return out
}

func (m *Manager) Novels(ctx context.Context) []*model.Novel {
	novels := m.adapter.Novels(ctx)
	out := []*model.Novel{}
	if err := copier.Copy(&out, &novels); err != nil {
		Logger.Log.Error("failed to copy novels projection: ", err)
		return []*model.Novel{}
	}
	return out
}

// Users refreshes the user projection and returns it.
func (m *Manager) Users(ctx context.Context) []*model.User {
	users := m.adapter.Users(ctx)
	m.mu.Lock()
	for _, u := range users {
		m.users[u.Id] = u
	}
	m.mu.Unlock()

	out := []*model.User{}
	if err := copier.Copy(&out, &users); err != nil {
		Logger.Log.Error("failed to copy users projection: ", err)
		return []*model.User{}
	}
	return out
}

// UserByID serves from the projection when possible and falls back to a
// keyed read. Returns nil for unknown users, matching the store boundary.
func (m *Manager) UserByID(ctx context.Context, userID string) *model.User {
	m.mu.RLock()
	cached, ok := m.users[userID]
	m.mu.RUnlock()
	if !ok {
		cached = m.adapter.UserByID(ctx, userID)
		if cached == nil {
			return nil
		}
		m.mu.Lock()
		m.users[userID] = cached
		m.mu.Unlock()
	}

	out := &model.User{}
	if err := copier.Copy(out, cached); err != nil {
		Logger.Log.Error("failed to copy user record: ", err)
		return nil
	}
	return out
}

// Settings returns the cached settings, falling back to the store and then
// to defaults. Never returns nil.
func (m *Manager) Settings(ctx context.Context) *model.Settings {
	m.mu.RLock()
	cached := m.settings
	m.mu.RUnlock()

	if cached == nil {
		cached = m.adapter.Settings(ctx)
		if cached == nil {
			cached = model.DefaultSettings()
		}
		m.mu.Lock()
		m.settings = cached
		m.mu.Unlock()
	}

	out := &model.Settings{}
	if err := copier.Copy(out, cached); err != nil {
		Logger.Log.Error("failed to copy settings: ", err)
		return model.DefaultSettings()
	}
	return out
}

// SettingsPatch carries a partial settings update. Zero-valued fields leave
// the current value untouched; Features entries are merged key by key.
type SettingsPatch struct {
	Theme    string          `json:"theme,omitempty"`
	Language string          `json:"language,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// UpdateSettings merges the patch into the current settings, persists the
// result and, when any feature flag actually changed, publishes
// featureChanged so section controls re-evaluate their visibility.
func (m *Manager) UpdateSettings(ctx context.Context, patch SettingsPatch) error {
	current := m.Settings(ctx)

	if patch.Theme != "" {
		current.Theme = patch.Theme
	}
	if patch.Language != "" {
		current.Language = patch.Language
	}

	featuresChanged := false
	if patch.Features != nil {
		if current.Features == nil {
			current.Features = map[string]bool{}
		}
		for name, enabled := range patch.Features {
			if existing, ok := current.Features[name]; !ok || existing != enabled {
				featuresChanged = true
			}
			current.Features[name] = enabled
		}
	}

	if err := m.adapter.SaveSettings(ctx, current); err != nil {
		return err
	}

	m.mu.Lock()
	m.settings = current
	m.mu.Unlock()

	if featuresChanged {
		if err := m.bus.Publish(model.EventFeatureChanged, current); err != nil {
			Logger.Log.Error("failed to publish feature change: ", err)
		}
	}
	return nil
}

// TogglePostLike forwards the non-atomic read-modify-write toggle to the
// adapter. The projection is not patched: the posts view re-reads the store
// on its next refresh.
func (m *Manager) TogglePostLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	return m.adapter.TogglePostLike(ctx, postID, userID)
}

// AddScreenshot records a screenshot activity.
func (m *Manager) AddScreenshot(ctx context.Context, userID, page, userAgent, url string) {
	m.adapter.SaveScreenshot(ctx, userID, page, userAgent, url)
}
