// Package viewstate is the reactive refresh engine: it tracks the active
// content section, gates transitions by feature flags and triggers a full
// re-render of the active section on tab switch, on initial load and on
// relevant push notifications.
package viewstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/ggeejehd-eng/mj36/bus"
	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/model"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

// ErrFeatureDisabled is returned when a section transition or action is
// blocked by a settings flag.
var ErrFeatureDisabled = errors.New("feature disabled")

// Renderer produces the full replacement content for one section. Each
// renderer fetches its own data from the local cache; renders are
// idempotent full re-renders, never incremental diffs.
type Renderer interface {
	Render(ctx context.Context) (string, error)
}

// Container is one named render target. Implementations that have no live
// target simply drop the content; the engine null-checks and no-ops rather
// than erroring on a missing container.
type Container interface {
	SetContent(content string)
}

// Controls is the strip of section controls. SetActive moves the visual
// active mark; SetVisible hides or shows one control when feature flags
// change.
type Controls interface {
	SetActive(section model.Section)
	SetVisible(section model.Section, visible bool)
}

// Notifier surfaces user-visible toasts. Background flows never call it:
// passive data flow must not surface noise.
type Notifier interface {
	Warn(message string)
	Error(message string)
	Info(message string)
}

// IdentityProvider is the auth boundary: the current session identity or
// nil.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) *model.User
}

// Engine is the section state machine. There is no terminal state; it runs
// until its context is cancelled.
type Engine struct {
	cache    *cache.Manager
	bus      *bus.Bus
	identity IdentityProvider
	notifier Notifier
	controls Controls

	mu         sync.Mutex
	active     model.Section // zero value = no active section yet
	renderers  map[model.Section]Renderer
	containers map[model.Section]Container
}

func NewEngine(c *cache.Manager, b *bus.Bus, identity IdentityProvider, notifier Notifier, controls Controls) *Engine {
	return &Engine{
		cache:      c,
		bus:        b,
		identity:   identity,
		notifier:   notifier,
		controls:   controls,
		renderers:  make(map[model.Section]Renderer),
		containers: make(map[model.Section]Container),
	}
}

// RegisterRenderer binds a section to its renderer. The mapping must be
// exhaustive over the closed section set before Start; unknown sections are
// rejected rather than silently ignored.
func (e *Engine) RegisterRenderer(section model.Section, r Renderer) error {
	if !section.IsValid() {
		return fmt.Errorf("%s is not a valid section", section)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderers[section] = r
	return nil
}

// RegisterContainer binds a section to its render target.
func (e *Engine) RegisterContainer(section model.Section, c Container) error {
	if !section.IsValid() {
		return fmt.Errorf("%s is not a valid section", section)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.containers[section] = c
	return nil
}

// Start subscribes the engine to the notification bus. A newMessage only
// refreshes the messages section and only while it is active; there is no
// unread badge, the event is otherwise dropped. A featureChanged
// re-evaluates the visibility of every section control regardless of the
// active section.
func (e *Engine) Start(ctx context.Context) error {
	err := e.bus.Subscribe(ctx, model.EventNewMessage, func(event string, payload []byte) {
		msg := &model.Message{}
		if err := json.Unmarshal(payload, msg); err != nil {
			Logger.Log.Error("undecodable newMessage payload: ", err)
			return
		}
		e.mu.Lock()
		active := e.active
		e.mu.Unlock()
		if active == model.SectionMessages {
			e.refreshSection(ctx, model.SectionMessages)
		}
	})
	if err != nil {
		return err
	}

	return e.bus.Subscribe(ctx, model.EventFeatureChanged, func(event string, payload []byte) {
		e.updateFeatureVisibility(ctx)
	})
}

// ActiveSection returns the currently active section; ok is false before
// the first selection.
func (e *Engine) ActiveSection() (model.Section, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != ""
}

// SelectSection transitions to a section. A transition blocked by a
// feature flag leaves the active section unchanged, emits exactly one
// user-visible warning and issues no section fetch.
func (e *Engine) SelectSection(ctx context.Context, section model.Section) error {
	if !section.IsValid() {
		return fmt.Errorf("%s is not a valid section", section)
	}

	settings := e.cache.Settings(ctx)
	if !settings.FeatureEnabled(section.String()) {
		if e.notifier != nil {
			e.notifier.Warn("This feature is currently disabled")
		}
		return errors.Wrap(ErrFeatureDisabled, section.String())
	}

	e.mu.Lock()
	e.active = section
	e.mu.Unlock()

	if e.controls != nil {
		e.controls.SetActive(section)
	}

	e.refreshSection(ctx, section)
	return nil
}

// Refresh fully re-renders the active section. No-op before the first
// selection.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active == "" {
		return
	}
	e.refreshSection(ctx, active)
}

// RenderSection runs a section's renderer and returns the content without
// touching the active section or any container. The HTTP surface uses it to
// return a section payload inline with the response.
func (e *Engine) RenderSection(ctx context.Context, section model.Section) (string, error) {
	if !section.IsValid() {
		return "", fmt.Errorf("%s is not a valid section", section)
	}

	e.mu.Lock()
	renderer := e.renderers[section]
	e.mu.Unlock()
	if renderer == nil {
		return "", fmt.Errorf("no renderer registered for section %s", section)
	}

	return safeRender(ctx, renderer)
}

// refreshSection runs one renderer and replaces its container's content. A
// renderer failure or panic is confined to its own section: the container
// gets an inline error affordance offering a manual retry, the rest of the
// page is untouched and nothing propagates.
func (e *Engine) refreshSection(ctx context.Context, section model.Section) {
	e.mu.Lock()
	renderer := e.renderers[section]
	container := e.containers[section]
	e.mu.Unlock()

	if renderer == nil {
		Logger.Log.Error("no renderer registered for section ", section)
		return
	}

	content, err := safeRender(ctx, renderer)
	if err != nil {
		Logger.Log.Error("failed to render section ", section, ": ", err)
		content = errorAffordance(section)
	}

	// Missing container: the page does not show this section, drop the
	// render silently.
	if container != nil {
		container.SetContent(content)
	}

	if err == nil {
		if perr := e.bus.Publish(model.EventSectionRendered, &model.RenderSignal{
			Section: section,
			Content: content,
		}); perr != nil {
			Logger.Log.Error("failed to publish render signal: ", perr)
		}
	}
}

func safeRender(ctx context.Context, r Renderer) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	return r.Render(ctx)
}

func errorAffordance(section model.Section) string {
	return fmt.Sprintf(
		`<div class="error-state"><p>Failed to load %s</p><button class="btn btn-primary" data-retry="%s">Retry</button></div>`,
		section, section)
}

// updateFeatureVisibility hides or shows every section control according to
// the current feature flags, independent of which section is active.
func (e *Engine) updateFeatureVisibility(ctx context.Context) {
	if e.controls == nil {
		return
	}
	settings := e.cache.Settings(ctx)
	for _, section := range model.AllSections {
		e.controls.SetVisible(section, settings.FeatureEnabled(section.String()))
	}
}

// === optimistic mutation helpers ===

// ToggleLike wraps the non-atomic like toggle: identity pre-check, remote
// mutation, then a forced refresh of the posts section to reconcile the
// optimistic assumption with whatever the store actually holds. Failures
// surface as a dismissible notification; there is no automatic retry.
func (e *Engine) ToggleLike(ctx context.Context, postID string) error {
	user := e.identity.CurrentUser(ctx)
	if user == nil {
		if e.notifier != nil {
			e.notifier.Error("Please sign in to like posts")
		}
		return errors.New("no current user")
	}

	if _, err := e.cache.TogglePostLike(ctx, postID, user.Id); err != nil {
		if e.notifier != nil {
			e.notifier.Error("Something went wrong while liking the post")
		}
		return err
	}

	e.refreshSection(ctx, model.SectionPosts)
	return nil
}

// TakeScreenshot records a screenshot activity for the current user.
func (e *Engine) TakeScreenshot(ctx context.Context, page, userAgent, url string) error {
	user := e.identity.CurrentUser(ctx)
	if user == nil {
		if e.notifier != nil {
			e.notifier.Error("Please sign in first")
		}
		return errors.New("no current user")
	}

	e.cache.AddScreenshot(ctx, user.Id, page, userAgent, url)
	if e.notifier != nil {
		e.notifier.Info("Screenshot saved")
	}
	return nil
}
