package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/utils"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

// ArchiveSink receives records the maintenance sweep is about to delete.
// The gorm-backed implementation lives in the archive package; tests use a
// no-op fake.
type ArchiveSink interface {
	ArchiveStory(ctx context.Context, story *model.Story) error
	ArchiveActivity(ctx context.Context, activity *model.Activity) error
}

/*

Adapter translates domain operations into store primitives and normalizes
results into plain domain records.

Error policy, per operation class:
  - reads: remote failures are logged and reported as an empty result, so
    callers treat absence and failure identically (silent-empty policy)
  - writes: failures surface to the caller, who owns the user-visible
    reaction

*/

type Adapter struct {
	store Store
}

func NewAdapter(s Store) *Adapter {
	return &Adapter{store: s}
}

// Ready reports the underlying store readiness.
func (a *Adapter) Ready() bool {
	return a.store.Ready()
}

// Store exposes the raw primitives for collaborators that need them (the
// engine's append listener).
func (a *Adapter) Store() Store {
	return a.store
}

func decodeInto(rec Record, v interface{}) error {
	return json.Unmarshal(rec, v)
}

// === messages ===

func (a *Adapter) SendMessage(ctx context.Context, senderID, receiverID, content, msgType string) (*model.Message, error) {
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       msgType,
		Timestamp:  utils.NowMillis(),
		Read:       false,
	}
	payload, err := ToPayload(msg)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, CollectionMessages, payload)
	if err != nil {
		return nil, errors.Wrap(err, "send message")
	}
	if err := decodeInto(rec, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ExistingMessages returns every message ordered by timestamp ascending,
// the display order.
func (a *Adapter) ExistingMessages(ctx context.Context) []*model.Message {
	recs, err := a.store.List(ctx, CollectionMessages, Filter{OrderBy: "timestamp"})
	if err != nil {
		Logger.Log.Error("failed to fetch existing messages: ", err)
		return []*model.Message{}
	}
	messages := make([]*model.Message, 0, len(recs))
	for _, rec := range recs {
		m := &model.Message{}
		if err := decodeInto(rec, m); err != nil {
			Logger.Log.Error("skipping undecodable message: ", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

// SubscribeMessages registers a persistent listener fired once per message
// appended after subscription time, in store append order.
func (a *Adapter) SubscribeMessages(ctx context.Context, fn func(*model.Message)) (Subscription, error) {
	return a.store.SubscribeAppends(ctx, CollectionMessages, func(rec Record) {
		m := &model.Message{}
		if err := decodeInto(rec, m); err != nil {
			Logger.Log.Error("dropping undecodable pushed message: ", err)
			return
		}
		fn(m)
	})
}

// === posts ===

func (a *Adapter) SavePost(ctx context.Context, userID, content, image string) (*model.Post, error) {
	post := &model.Post{
		UserID:    userID,
		Content:   content,
		Image:     image,
		Timestamp: utils.NowMillis(),
		Likes:     0,
		LikedBy:   []string{},
	}
	payload, err := ToPayload(post)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, CollectionPosts, payload)
	if err != nil {
		return nil, errors.Wrap(err, "save post")
	}
	if err := decodeInto(rec, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Posts returns all posts, newest first.
func (a *Adapter) Posts(ctx context.Context) []*model.Post {
	recs, err := a.store.List(ctx, CollectionPosts, Filter{OrderBy: "timestamp"})
	if err != nil {
		Logger.Log.Error("failed to fetch posts: ", err)
		return []*model.Post{}
	}
	posts := make([]*model.Post, 0, len(recs))
	for _, rec := range recs {
		p := &model.Post{}
		if err := decodeInto(rec, p); err != nil {
			Logger.Log.Error("skipping undecodable post: ", err)
			continue
		}
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Timestamp > posts[j].Timestamp
	})
	return posts
}

// TogglePostLike flips userID's like on a post.
//
// This is a read-modify-write without any transactional primitive: one
// snapshot read, a client-side toggle, one fields write-back. Two sessions
// racing between the read and the write lose one toggle (last-write-wins on
// the whole likedBy field). That is the store's documented limitation,
// preserved here rather than silently fixed; see DESIGN.md.
func (a *Adapter) TogglePostLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	// The toggle is a mutation even though it starts with a read: on an
	// uninitialized store it must fail like every other write, not report
	// the post missing because the read leg came back empty.
	if !a.store.Ready() {
		return nil, errors.Wrap(ErrNotReady, "toggle like")
	}

	rec, err := a.store.Get(ctx, CollectionPosts, postID)
	if err != nil {
		return nil, errors.Wrap(err, "toggle like")
	}
	if rec == nil {
		return nil, errors.Wrap(ErrNotFound, "post "+postID)
	}

	post := &model.Post{}
	if err := decodeInto(rec, post); err != nil {
		return nil, err
	}

	if post.LikedByUser(userID) {
		post.LikedBy = utils.RemoveString(post.LikedBy, userID)
	} else {
		post.LikedBy = append(post.LikedBy, userID)
	}
	// The counter is always derived, never incremented, so the
	// likes == len(likedBy) invariant holds after every mutation.
	post.Likes = len(post.LikedBy)

	err = a.store.UpdateFields(ctx, CollectionPosts, postID, map[string]interface{}{
		"likes":   post.Likes,
		"likedBy": post.LikedBy,
	})
	if err != nil {
		return nil, errors.Wrap(err, "toggle like")
	}
	return post, nil
}

// === stories ===

func (a *Adapter) SaveStory(ctx context.Context, userID, content, media string, expiresAt int64) (*model.Story, error) {
	story := &model.Story{
		UserID:    userID,
		Content:   content,
		Media:     media,
		Timestamp: utils.NowMillis(),
		ExpiresAt: expiresAt,
	}
	payload, err := ToPayload(story)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, CollectionStories, payload)
	if err != nil {
		return nil, errors.Wrap(err, "save story")
	}
	if err := decodeInto(rec, story); err != nil {
		return nil, err
	}
	return story, nil
}

// ActiveStories returns stories whose expiry is still in the future.
// Expired stories stay in the collection until the maintenance sweep gets
// to them; readers never see them.
func (a *Adapter) ActiveStories(ctx context.Context) []*model.Story {
	recs, err := a.store.List(ctx, CollectionStories, Filter{OrderBy: "timestamp"})
	if err != nil {
		Logger.Log.Error("failed to fetch stories: ", err)
		return []*model.Story{}
	}
	now := utils.NowMillis()
	stories := []*model.Story{}
	for _, rec := range recs {
		s := &model.Story{}
		if err := decodeInto(rec, s); err != nil {
			Logger.Log.Error("skipping undecodable story: ", err)
			continue
		}
		if s.Active(now) {
			stories = append(stories, s)
		}
	}
	return stories
}

// === novels ===

func (a *Adapter) SaveNovel(ctx context.Context, authorID, title, content string) (*model.Novel, error) {
	novel := &model.Novel{
		Title:     title,
		Content:   content,
		AuthorID:  authorID,
		Timestamp: utils.NowMillis(),
	}
	payload, err := ToPayload(novel)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, CollectionNovels, payload)
	if err != nil {
		return nil, errors.Wrap(err, "save novel")
	}
	if err := decodeInto(rec, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

// Novels returns all novels, newest first.
func (a *Adapter) Novels(ctx context.Context) []*model.Novel {
	recs, err := a.store.List(ctx, CollectionNovels, Filter{OrderBy: "timestamp"})
	if err != nil {
		Logger.Log.Error("failed to fetch novels: ", err)
		return []*model.Novel{}
	}
	novels := make([]*model.Novel, 0, len(recs))
	for _, rec := range recs {
		n := &model.Novel{}
		if err := decodeInto(rec, n); err != nil {
			Logger.Log.Error("skipping undecodable novel: ", err)
			continue
		}
		novels = append(novels, n)
	}
	sort.SliceStable(novels, func(i, j int) bool {
		return novels[i].Timestamp > novels[j].Timestamp
	})
	return novels
}

// === users ===

// AddUser persists a new account. Username uniqueness is the caller's
// responsibility (a pre-check query in auth), not the store's.
func (a *Adapter) AddUser(ctx context.Context, username, passwordHash, avatar string, isAdmin bool) (*model.User, error) {
	if avatar == "" {
		avatar = model.DefaultAvatar
	}
	now := utils.NowMillis()
	user := &model.User{
		Username:     username,
		PasswordHash: passwordHash,
		Avatar:       avatar,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastActive:   now,
	}
	payload, err := ToPayload(user)
	if err != nil {
		return nil, err
	}
	rec, err := a.store.Create(ctx, CollectionUsers, payload)
	if err != nil {
		return nil, errors.Wrap(err, "add user")
	}
	if err := decodeInto(rec, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUserData merges partial profile fields into an existing user record.
func (a *Adapter) SaveUserData(ctx context.Context, userID string, fields map[string]interface{}) error {
	if err := a.store.UpdateFields(ctx, CollectionUsers, userID, fields); err != nil {
		return errors.Wrap(err, "save user data")
	}
	return nil
}

func (a *Adapter) UserByID(ctx context.Context, userID string) *model.User {
	rec, err := a.store.Get(ctx, CollectionUsers, userID)
	if err != nil {
		Logger.Log.Error("failed to fetch user ", userID, ": ", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	u := &model.User{}
	if err := decodeInto(rec, u); err != nil {
		Logger.Log.Error("undecodable user record: ", err)
		return nil
	}
	return u
}

func (a *Adapter) Users(ctx context.Context) []*model.User {
	recs, err := a.store.List(ctx, CollectionUsers, Filter{})
	if err != nil {
		Logger.Log.Error("failed to fetch users: ", err)
		return []*model.User{}
	}
	users := make([]*model.User, 0, len(recs))
	for _, rec := range recs {
		u := &model.User{}
		if err := decodeInto(rec, u); err != nil {
			Logger.Log.Error("skipping undecodable user: ", err)
			continue
		}
		users = append(users, u)
	}
	return users
}

// UserByUsername resolves a user through an equality query. Returns nil when
// no user matches.
func (a *Adapter) UserByUsername(ctx context.Context, username string) *model.User {
	recs, err := a.store.List(ctx, CollectionUsers, Filter{
		EqualsField: "username",
		EqualsValue: username,
	})
	if err != nil {
		Logger.Log.Error("failed to fetch user by username: ", err)
		return nil
	}
	if len(recs) == 0 {
		return nil
	}
	u := &model.User{}
	if err := decodeInto(recs[len(recs)-1], u); err != nil {
		Logger.Log.Error("undecodable user record: ", err)
		return nil
	}
	return u
}

// === settings ===

// SaveSettings fully replaces the settings singleton.
func (a *Adapter) SaveSettings(ctx context.Context, settings *model.Settings) error {
	settings.LastUpdated = utils.NowMillis()
	payload, err := ToPayload(settings)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, CollectionSettings, SettingsKey, payload); err != nil {
		return errors.Wrap(err, "save settings")
	}
	return nil
}

// Settings returns the singleton record or nil when it was never written.
// Callers apply defaults on nil.
func (a *Adapter) Settings(ctx context.Context) *model.Settings {
	rec, err := a.store.Get(ctx, CollectionSettings, SettingsKey)
	if err != nil {
		Logger.Log.Error("failed to fetch settings: ", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	s := &model.Settings{}
	if err := decodeInto(rec, s); err != nil {
		Logger.Log.Error("undecodable settings record: ", err)
		return nil
	}
	return s
}

// === activity log ===

// LogActivity appends to the activity log. Failures are logged only: the
// log is telemetry, losing an entry must never interrupt the user flow.
func (a *Adapter) LogActivity(ctx context.Context, activity *model.Activity) {
	activity.Timestamp = utils.NowMillis()
	payload, err := ToPayload(activity)
	if err != nil {
		Logger.Log.Error("failed to encode activity: ", err)
		return
	}
	if _, err := a.store.Create(ctx, CollectionActivities, payload); err != nil {
		Logger.Log.Error("failed to log activity: ", err)
	}
}

// SaveScreenshot records a screenshot event as an activity entry.
func (a *Adapter) SaveScreenshot(ctx context.Context, userID, page, userAgent, url string) {
	a.LogActivity(ctx, &model.Activity{
		UserID:    userID,
		Type:      model.ActivityTypeScreenshot,
		Data:      map[string]string{"page": page},
		UserAgent: userAgent,
		URL:       url,
	})
}

// Screenshots returns every screenshot activity in capture order, via an
// equality query on the activity type.
func (a *Adapter) Screenshots(ctx context.Context) []*model.Activity {
	recs, err := a.store.List(ctx, CollectionActivities, Filter{
		EqualsField: "type",
		EqualsValue: model.ActivityTypeScreenshot,
		OrderBy:     "timestamp",
	})
	if err != nil {
		Logger.Log.Error("failed to fetch screenshots: ", err)
		return []*model.Activity{}
	}
	shots := make([]*model.Activity, 0, len(recs))
	for _, rec := range recs {
		act := &model.Activity{}
		if err := decodeInto(rec, act); err != nil {
			Logger.Log.Error("skipping undecodable activity: ", err)
			continue
		}
		shots = append(shots, act)
	}
	return shots
}

// === stats ===

// UsageStats counts every collection with parallel one-shot reads. Counts
// across collections are not mutually consistent.
func (a *Adapter) UsageStats(ctx context.Context) *model.UsageStats {
	if !a.store.Ready() {
		return nil
	}
	type countResult struct {
		collection string
		count      int
	}
	collections := []string{
		CollectionMessages, CollectionPosts, CollectionStories,
		CollectionNovels, CollectionUsers,
	}
	results := make(chan countResult, len(collections))
	for _, c := range collections {
		go func(collection string) {
			recs, err := a.store.List(ctx, collection, Filter{})
			if err != nil {
				Logger.Log.Error("failed to count ", collection, ": ", err)
			}
			results <- countResult{collection: collection, count: len(recs)}
		}(c)
	}

	stats := &model.UsageStats{LastUpdated: utils.NowMillis()}
	for range collections {
		r := <-results
		switch r.collection {
		case CollectionMessages:
			stats.TotalMessages = r.count
		case CollectionPosts:
			stats.TotalPosts = r.count
		case CollectionStories:
			stats.TotalStories = r.count
		case CollectionNovels:
			stats.TotalNovels = r.count
		case CollectionUsers:
			stats.TotalUsers = r.count
		}
	}
	return stats
}

// === maintenance ===

// SweepCap is how many records each sweep invocation scans per collection.
// Callers needing a deeper sweep run the sweep repeatedly.
const SweepCap = 100

// ActivityRetention is how long activity log entries are kept.
const ActivityRetention = 30 * 24 * time.Hour

// CleanupOldData removes expired stories and aged activities, scanning at
// most SweepCap records per collection per invocation. Every victim is
// archived before deletion; a failed archive skips the delete so nothing is
// lost. Returns how many stories and activities were deleted.
func (a *Adapter) CleanupOldData(ctx context.Context, sink ArchiveSink) (int, int) {
	if !a.store.Ready() {
		return 0, 0
	}
	now := utils.NowMillis()

	storiesDeleted := 0
	recs, err := a.store.List(ctx, CollectionStories, Filter{OrderBy: "expiresAt", LastN: SweepCap})
	if err != nil {
		Logger.Log.Error("sweep: failed to scan stories: ", err)
	}
	for _, rec := range recs {
		s := &model.Story{}
		if err := decodeInto(rec, s); err != nil {
			continue
		}
		if s.ExpiresAt >= now {
			continue
		}
		if err := sink.ArchiveStory(ctx, s); err != nil {
			Logger.Log.Error("sweep: failed to archive story ", s.Id, ": ", err)
			continue
		}
		if err := a.store.Delete(ctx, CollectionStories, s.Id); err != nil {
			Logger.Log.Error("sweep: failed to delete story ", s.Id, ": ", err)
			continue
		}
		storiesDeleted++
	}

	cutoff := now - ActivityRetention.Milliseconds()
	activitiesDeleted := 0
	recs, err = a.store.List(ctx, CollectionActivities, Filter{OrderBy: "timestamp", LastN: SweepCap})
	if err != nil {
		Logger.Log.Error("sweep: failed to scan activities: ", err)
	}
	for _, rec := range recs {
		act := &model.Activity{}
		if err := decodeInto(rec, act); err != nil {
			continue
		}
		if act.Timestamp >= cutoff {
			continue
		}
		if err := sink.ArchiveActivity(ctx, act); err != nil {
			Logger.Log.Error("sweep: failed to archive activity ", act.Id, ": ", err)
			continue
		}
		if err := a.store.Delete(ctx, CollectionActivities, act.Id); err != nil {
			Logger.Log.Error("sweep: failed to delete activity ", act.Id, ": ", err)
			continue
		}
		activitiesDeleted++
	}

	return storiesDeleted, activitiesDeleted
}
