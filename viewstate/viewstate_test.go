package viewstate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
)

type fakeNotifier struct {
	mu     sync.Mutex
	warns  []string
	errors []string
	infos  []string
}

func (n *fakeNotifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, msg)
}
func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}
func (n *fakeNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}
func (n *fakeNotifier) warnCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.warns)
}

type fakeContainer struct {
	mu      sync.Mutex
	history []string
}

func (c *fakeContainer) SetContent(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, content)
}
func (c *fakeContainer) renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
func (c *fakeContainer) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return ""
	}
	return c.history[len(c.history)-1]
}

type fakeControls struct {
	mu      sync.Mutex
	active  model.Section
	visible map[model.Section]bool
}

func newFakeControls() *fakeControls {
	return &fakeControls{visible: make(map[model.Section]bool)}
}
func (c *fakeControls) SetActive(section model.Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = section
}
func (c *fakeControls) SetVisible(section model.Section, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible[section] = visible
}
func (c *fakeControls) isVisible(section model.Section) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.visible[section]
	return v, ok
}

type fakeIdentity struct {
	user *model.User
}

func (f *fakeIdentity) CurrentUser(ctx context.Context) *model.User {
	return f.user
}

// countingStore wraps a Store and counts remote operations, to assert that
// gated transitions issue none.
type countingStore struct {
	store.Store
	mu  sync.Mutex
	ops int
}

func (c *countingStore) List(ctx context.Context, collection string, f store.Filter) ([]store.Record, error) {
	c.mu.Lock()
	c.ops++
	c.mu.Unlock()
	return c.Store.List(ctx, collection, f)
}
func (c *countingStore) Get(ctx context.Context, collection, id string) (store.Record, error) {
	c.mu.Lock()
	c.ops++
	c.mu.Unlock()
	return c.Store.Get(ctx, collection, id)
}
func (c *countingStore) opCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops
}

type fixture struct {
	engine     *Engine
	cache      *cache.Manager
	fake       *store.FakeStore
	counting   *countingStore
	bus        *bus.Bus
	notifier   *fakeNotifier
	controls   *fakeControls
	identity   *fakeIdentity
	containers map[model.Section]*fakeContainer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := store.NewFakeStore()
	counting := &countingStore{Store: fake}
	b := bus.New(16)
	t.Cleanup(func() { b.Close() })

	c := cache.NewManager(store.NewAdapter(counting), b)
	notifier := &fakeNotifier{}
	controls := newFakeControls()
	identity := &fakeIdentity{}

	engine := NewEngine(c, b, identity, notifier, controls)
	require.NoError(t, RegisterDefaultRenderers(engine, c, identity))

	containers := make(map[model.Section]*fakeContainer)
	for _, section := range model.AllSections {
		container := &fakeContainer{}
		containers[section] = container
		require.NoError(t, engine.RegisterContainer(section, container))
	}

	return &fixture{
		engine: engine, cache: c, fake: fake, counting: counting, bus: b,
		notifier: notifier, controls: controls, identity: identity,
		containers: containers,
	}
}

func TestSelectSectionRendersOnlyThatSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.SelectSection(ctx, model.SectionPosts))

	active, ok := f.engine.ActiveSection()
	require.True(t, ok)
	assert.Equal(t, model.SectionPosts, active)
	assert.Equal(t, model.SectionPosts, f.controls.active)
	assert.Equal(t, 1, f.containers[model.SectionPosts].renders())
	assert.Contains(t, f.containers[model.SectionPosts].last(), "No posts yet")
	for _, other := range []model.Section{model.SectionMessages, model.SectionStories, model.SectionWatch, model.SectionNovels} {
		assert.Zero(t, f.containers[other].renders())
	}
}

func TestSelectSectionRejectsUnknownName(t *testing.T) {
	f := newFixture(t)

	_, err := model.ParseSection("bogus")
	require.Error(t, err)

	err = f.engine.SelectSection(context.Background(), model.Section("bogus"))
	require.Error(t, err)
	_, ok := f.engine.ActiveSection()
	assert.False(t, ok)
}

func TestFeatureGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.UpdateSettings(ctx, cache.SettingsPatch{
		Features: map[string]bool{"stories": false},
	}))
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionPosts))

	opsBefore := f.counting.opCount()
	err := f.engine.SelectSection(ctx, model.SectionStories)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeatureDisabled)

	// Active section unchanged, exactly one warning, zero remote calls.
	active, _ := f.engine.ActiveSection()
	assert.Equal(t, model.SectionPosts, active)
	assert.Equal(t, 1, f.notifier.warnCount())
	assert.Equal(t, opsBefore, f.counting.opCount())
	assert.Zero(t, f.containers[model.SectionStories].renders())
}

func TestNewMessageRefreshesActiveMessagesSection(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.identity.user = &model.User{Id: "u1", Username: "jehad"}
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionMessages))
	before := f.containers[model.SectionMessages].renders()

	msg := &model.Message{Id: "m1", SenderID: "u1", Content: "hello", Timestamp: 1}
	f.cache.ApplyMessage(msg)
	require.NoError(t, f.bus.Publish(model.EventNewMessage, msg))

	assert.Eventually(t, func() bool {
		return f.containers[model.SectionMessages].renders() > before &&
			strings.Contains(f.containers[model.SectionMessages].last(), "hello")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewMessageDroppedWhenOtherSectionActive(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionPosts))
	before := f.containers[model.SectionMessages].renders()

	require.NoError(t, f.bus.Publish(model.EventNewMessage, &model.Message{Id: "m1"}))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, f.containers[model.SectionMessages].renders())
}

func TestFeatureChangedUpdatesAllControlVisibility(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.cache.UpdateSettings(ctx, cache.SettingsPatch{
		Features: map[string]bool{"novels": false},
	}))

	assert.Eventually(t, func() bool {
		novels, ok := f.controls.isVisible(model.SectionNovels)
		posts, ok2 := f.controls.isVisible(model.SectionPosts)
		return ok && ok2 && !novels && posts
	}, 2*time.Second, 10*time.Millisecond)
}

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context) (string, error) {
	return "", assert.AnError
}

type panickyRenderer struct{}

func (panickyRenderer) Render(ctx context.Context) (string, error) {
	panic("render exploded")
}

func TestRenderFailureConfinedToSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.RegisterRenderer(model.SectionNovels, failingRenderer{}))
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionNovels))

	content := f.containers[model.SectionNovels].last()
	assert.Contains(t, content, "Retry")
	active, _ := f.engine.ActiveSection()
	assert.Equal(t, model.SectionNovels, active)
}

func TestRendererPanicConfinedToSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.RegisterRenderer(model.SectionWatch, panickyRenderer{}))
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionWatch))

	assert.Contains(t, f.containers[model.SectionWatch].last(), "Retry")
}

func TestMissingContainerIsSilentNoop(t *testing.T) {
	fake := store.NewFakeStore()
	b := bus.New(16)
	defer b.Close()
	c := cache.NewManager(store.NewAdapter(fake), b)
	engine := NewEngine(c, b, &fakeIdentity{}, &fakeNotifier{}, nil)
	require.NoError(t, RegisterDefaultRenderers(engine, c, &fakeIdentity{}))

	// No container registered for posts: select must not error or panic.
	require.NoError(t, engine.SelectSection(context.Background(), model.SectionPosts))
}

func TestToggleLikeRequiresUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adapter := store.NewAdapter(f.fake)
	post, err := adapter.SavePost(ctx, "author", "content", "")
	require.NoError(t, err)

	err = f.engine.ToggleLike(ctx, post.Id)
	require.Error(t, err)
	assert.Len(t, f.notifier.errors, 1)

	// No mutation happened.
	assert.Equal(t, 0, adapter.Posts(ctx)[0].Likes)
}

func TestToggleLikeRefreshesPostsSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adapter := store.NewAdapter(f.fake)
	post, err := adapter.SavePost(ctx, "author", "content", "")
	require.NoError(t, err)

	f.identity.user = &model.User{Id: "fan", Username: "fan"}
	require.NoError(t, f.engine.SelectSection(ctx, model.SectionPosts))
	before := f.containers[model.SectionPosts].renders()

	require.NoError(t, f.engine.ToggleLike(ctx, post.Id))

	assert.Equal(t, 1, adapter.Posts(ctx)[0].Likes)
	assert.Greater(t, f.containers[model.SectionPosts].renders(), before)
}

func TestToggleLikeMissingPostSurfacesTransientError(t *testing.T) {
	f := newFixture(t)
	f.identity.user = &model.User{Id: "fan", Username: "fan"}

	err := f.engine.ToggleLike(context.Background(), "no-such-post")
	require.Error(t, err)
	assert.Len(t, f.notifier.errors, 1)
}

func TestTakeScreenshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.identity.user = &model.User{Id: "u1", Username: "jehad"}

	require.NoError(t, f.engine.TakeScreenshot(ctx, "index", "agent", "http://localhost/"))

	adapter := store.NewAdapter(f.fake)
	shots := adapter.Screenshots(ctx)
	require.Len(t, shots, 1)
	assert.Equal(t, "u1", shots[0].UserID)
	assert.Len(t, f.notifier.infos, 1)
}
