// Package server is the HTTP and websocket surface of the sync runtime. It
// exposes the mutation endpoints, the section selection endpoint that drives
// the view-state engine, and the websocket stream carrying render signals to
// connected clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ggeejehd-eng/mj36/auth"
	"github.com/ggeejehd-eng/mj36/cache"
	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
	"github.com/ggeejehd-eng/mj36/utils"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
	"github.com/ggeejehd-eng/mj36/viewstate"
)

// DefaultStoryTTL is how long a story stays active when the client does not
// supply an explicit expiry.
const DefaultStoryTTL = 24 * time.Hour

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the app origin which is served separately.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handlers bundles the dependencies every route needs.
type Handlers struct {
	adapter *store.Adapter
	cache   *cache.Manager
	view    *viewstate.Engine
	auth    *auth.Manager
	signals *SignalChannels
}

func NewHandlers(adapter *store.Adapter, c *cache.Manager, view *viewstate.Engine, am *auth.Manager, signals *SignalChannels) *Handlers {
	return &Handlers{
		adapter: adapter,
		cache:   c,
		view:    view,
		auth:    am,
		signals: signals,
	}
}

type credentialsInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) Register(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), input.Username, input.Password)
	if err == auth.ErrUsernameTaken {
		c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handlers) Login(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handlers) Logout(c *gin.Context) {
	h.auth.Logout(auth.TokenFromContext(c.Request.Context()))
	c.Status(http.StatusNoContent)
}

type postInput struct {
	Content string `json:"content" binding:"required"`
	Image   string `json:"image"`
}

func (h *Handlers) CreatePost(c *gin.Context) {
	var input postInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user := h.auth.CurrentUser(c.Request.Context())
	post, err := h.adapter.SavePost(c.Request.Context(), user.Id, input.Content, input.Image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handlers) ToggleLike(c *gin.Context) {
	if err := h.view.ToggleLike(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type messageInput struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content" binding:"required"`
	Type       string `json:"type"`
}

func (h *Handlers) SendMessage(c *gin.Context) {
	var input messageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user := h.auth.CurrentUser(c.Request.Context())
	msg, err := h.adapter.SendMessage(c.Request.Context(), user.Id, input.ReceiverID, input.Content, input.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msg)
}

type storyInput struct {
	Content   string `json:"content" binding:"required"`
	Media     string `json:"media"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (h *Handlers) CreateStory(c *gin.Context) {
	var input storyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if input.ExpiresAt == 0 {
		input.ExpiresAt = utils.NowMillis() + DefaultStoryTTL.Milliseconds()
	}

	user := h.auth.CurrentUser(c.Request.Context())
	story, err := h.adapter.SaveStory(c.Request.Context(), user.Id, input.Content, input.Media, input.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, story)
}

type novelInput struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handlers) CreateNovel(c *gin.Context) {
	var input novelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user := h.auth.CurrentUser(c.Request.Context())
	novel, err := h.adapter.SaveNovel(c.Request.Context(), user.Id, input.Title, input.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, novel)
}

// SelectSection activates a section and returns its rendered payload inline.
// Connected websocket clients receive the same content as a render signal.
func (h *Handlers) SelectSection(c *gin.Context) {
	section, err := model.ParseSection(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	if err := h.view.SelectSection(c.Request.Context(), section); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, viewstate.ErrFeatureDisabled) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"msg": err.Error()})
		return
	}

	content, err := h.view.RenderSection(c.Request.Context(), section)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "content": content})
}

func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.adapter.UsageStats(c.Request.Context()))
}

func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch cache.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	if err := h.cache.UpdateSettings(c.Request.Context(), patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.cache.Settings(c.Request.Context()))
}

type screenshotInput struct {
	Page      string `json:"page"`
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
}

func (h *Handlers) TakeScreenshot(c *gin.Context) {
	var input screenshotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	if err := h.view.TakeScreenshot(c.Request.Context(), input.Page, input.UserAgent, input.URL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type adminInput struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handlers) VerifyAdmin(c *gin.Context) {
	var input adminInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if !h.auth.VerifyAdminCode(input.Code) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "invalid admin code"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Websocket upgrades the connection and streams signals to the client until
// it disconnects. One channel per connection; a user with several devices
// gets several channels.
func (h *Handlers) Websocket(c *gin.Context) {
	user := h.auth.CurrentUser(c.Request.Context())
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "sign in required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Logger.Log.Error("websocket upgrade failed: ", err)
		return
	}
	defer conn.Close()

	// The request context stops tracking the client once the connection is
	// hijacked by the upgrade, so disconnects are detected on the read side
	// and propagated through our own context. Cancelling it both unblocks
	// the write loop and lets the signal registry reap this channel.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ch, chID := h.signals.AddNewConnection(ctx, user.Id)
	Logger.Log.Infof("websocket %s connected for user %s", chID, user.Id)

	// Drain the read side so close frames are processed; a read error means
	// the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-ch:
			if err := conn.WriteJSON(signal); err != nil {
				Logger.Log.Infof("websocket %s closed: %v", chID, err)
				return
			}
		}
	}
}
