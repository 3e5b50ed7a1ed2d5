package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ggeejehd-eng/mj36/auth"
)

// NewRouter wires every route. Default gin comes with the Logger and
// Recovery middleware already attached.
func NewRouter(h *Handlers, am *auth.Manager, sessionMW, requireUser gin.HandlerFunc) *gin.Engine {
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(sessionMW)

	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)
	router.POST("/admin/verify", h.VerifyAdmin)

	router.GET("/sections/:name", h.SelectSection)
	router.GET("/stats", h.Stats)
	router.PATCH("/settings", h.UpdateSettings)
	router.GET("/ws", h.Websocket)

	authed := router.Group("/", requireUser)
	authed.POST("/posts", h.CreatePost)
	authed.POST("/posts/:id/like", h.ToggleLike)
	authed.POST("/messages", h.SendMessage)
	authed.POST("/stories", h.CreateStory)
	authed.POST("/novels", h.CreateNovel)
	authed.POST("/screenshots", h.TakeScreenshot)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	return router
}
