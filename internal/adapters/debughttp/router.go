// Package debughttp serves local diagnostics over the engine's live tables.
package debughttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/domain"
)

// Source is the read-only view the router exposes; the client implements it.
type Source interface {
	SessionsSnapshot() []domain.SessionDTO
	PendingSnapshot() []domain.PendingSession
	ConversationsSnapshot() []domain.ConversationSnapshot
}

func SetupRouter(mode string, src Source) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.debughttp").Msg("router setup")

	api := r.Group("/api")

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": src.SessionsSnapshot()})
	})

	api.GET("/pending", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": src.PendingSnapshot()})
	})

	api.GET("/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": src.ConversationsSnapshot()})
	})

	return r
}
