package viewstate

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/utils"
)

// The renderers below produce the full replacement markup for their
// sections. Every call re-fetches from the local cache and rebuilds the
// whole container content from scratch.

type PostsRenderer struct {
	Cache    *cache.Manager
	Identity IdentityProvider
}

func (r *PostsRenderer) Render(ctx context.Context) (string, error) {
	posts := r.Cache.Posts(ctx)
	if len(posts) == 0 {
		return emptyState("No posts yet", "Create your first post"), nil
	}

	var current *model.User
	if r.Identity != nil {
		current = r.Identity.CurrentUser(ctx)
	}

	var b strings.Builder
	for _, post := range posts {
		author := r.Cache.UserByID(ctx, post.UserID)
		liked := current != nil && post.LikedByUser(current.Id)

		likedClass := ""
		if liked {
			likedClass = " liked"
		}
		b.WriteString(`<div class="card post-card"><div class="post-header">`)
		b.WriteString(fmt.Sprintf(`<h4>%s</h4><p class="post-time">%s</p></div>`,
			html.EscapeString(displayName(author)), timeAgo(post.Timestamp)))
		b.WriteString(fmt.Sprintf(`<div class="post-content"><p>%s</p>`, html.EscapeString(post.Content)))
		if post.Image != "" {
			b.WriteString(fmt.Sprintf(`<img src="%s" class="post-image">`, html.EscapeString(post.Image)))
		}
		b.WriteString(`</div><div class="post-actions">`)
		b.WriteString(fmt.Sprintf(`<button class="action-btn%s" data-like="%s"><span>%d</span></button>`,
			likedClass, post.Id, post.Likes))
		b.WriteString(`</div></div>`)
	}
	return b.String(), nil
}

type MessagesRenderer struct {
	Cache    *cache.Manager
	Identity IdentityProvider
}

func (r *MessagesRenderer) Render(ctx context.Context) (string, error) {
	var current *model.User
	if r.Identity != nil {
		current = r.Identity.CurrentUser(ctx)
	}
	if current == nil {
		return emptyState("Please sign in to view messages", ""), nil
	}

	messages := r.Cache.Messages()
	if len(messages) == 0 {
		return emptyState("No messages yet", "Start a new conversation"), nil
	}

	var b strings.Builder
	for _, msg := range messages {
		sender := r.Cache.UserByID(ctx, msg.SenderID)
		direction := "message-received"
		if msg.SenderID == current.Id {
			direction = "message-sent"
		}
		b.WriteString(fmt.Sprintf(`<div class="message %s"><div class="message-header">`, direction))
		b.WriteString(fmt.Sprintf(`<span class="message-sender">%s</span><span class="message-time">%s</span></div>`,
			html.EscapeString(displayName(sender)), timeAgo(msg.Timestamp)))
		b.WriteString(fmt.Sprintf(`<div class="message-body"><p>%s</p></div></div>`, html.EscapeString(msg.Content)))
	}
	return b.String(), nil
}

type StoriesRenderer struct {
	Cache *cache.Manager
}

func (r *StoriesRenderer) Render(ctx context.Context) (string, error) {
	stories := r.Cache.ActiveStories(ctx)
	if len(stories) == 0 {
		return emptyState("No stories yet", "Add a new story"), nil
	}

	var b strings.Builder
	for _, story := range stories {
		author := r.Cache.UserByID(ctx, story.UserID)
		b.WriteString(`<div class="card story-card"><div class="story-header">`)
		b.WriteString(fmt.Sprintf(`<h4>%s</h4><p>%s</p></div><div class="story-content">`,
			html.EscapeString(displayName(author)), timeAgo(story.Timestamp)))
		if story.Media != "" {
			b.WriteString(fmt.Sprintf(`<img src="%s" class="story-media">`, html.EscapeString(story.Media)))
		}
		b.WriteString(fmt.Sprintf(`<p>%s</p></div></div>`, html.EscapeString(story.Content)))
	}
	return b.String(), nil
}

type NovelsRenderer struct {
	Cache *cache.Manager
}

func (r *NovelsRenderer) Render(ctx context.Context) (string, error) {
	novels := r.Cache.Novels(ctx)
	if len(novels) == 0 {
		return emptyState("No novels yet", "Write a new novel"), nil
	}

	var b strings.Builder
	for _, novel := range novels {
		author := r.Cache.UserByID(ctx, novel.AuthorID)
		b.WriteString(`<div class="card novel-card"><div class="card-header">`)
		b.WriteString(fmt.Sprintf(`<h3 class="card-title">%s</h3><p class="text-muted">By %s &bull; %s</p></div>`,
			html.EscapeString(novel.Title), html.EscapeString(displayName(author)), timeAgo(novel.Timestamp)))
		b.WriteString(fmt.Sprintf(`<div class="card-body"><p class="card-text">%s</p></div></div>`,
			html.EscapeString(novel.Content)))
	}
	return b.String(), nil
}

// WatchRenderer renders the static watch layout; the player is wired
// entirely client-side.
type WatchRenderer struct{}

func (r *WatchRenderer) Render(ctx context.Context) (string, error) {
	return `<div class="watch-layout"><div class="video-container"><div class="video-placeholder"><p>Video player</p></div></div></div>`, nil
}

// RegisterDefaultRenderers installs the standard renderer per section,
// making the mapping exhaustive over the closed section set.
func RegisterDefaultRenderers(e *Engine, c *cache.Manager, identity IdentityProvider) error {
	renderers := map[model.Section]Renderer{
		model.SectionPosts:    &PostsRenderer{Cache: c, Identity: identity},
		model.SectionMessages: &MessagesRenderer{Cache: c, Identity: identity},
		model.SectionStories:  &StoriesRenderer{Cache: c},
		model.SectionWatch:    &WatchRenderer{},
		model.SectionNovels:   &NovelsRenderer{Cache: c},
	}
	for section, r := range renderers {
		if err := e.RegisterRenderer(section, r); err != nil {
			return err
		}
	}
	return nil
}

func displayName(u *model.User) string {
	if u == nil {
		return "User"
	}
	return u.Username
}

func emptyState(title, hint string) string {
	if hint == "" {
		return fmt.Sprintf(`<div class="empty-state"><h3>%s</h3></div>`, title)
	}
	return fmt.Sprintf(`<div class="empty-state"><h3>%s</h3><p>%s</p></div>`, title, hint)
}

func timeAgo(millis int64) string {
	elapsed := time.Duration(utils.NowMillis()-millis) * time.Millisecond
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}
