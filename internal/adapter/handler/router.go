package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/conversationhub/transcription-engine/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg         *config.Config
	liveHandler *Live
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, liveHandler *Live) *Router {
	return &Router{
		cfg:         cfg,
		liveHandler: liveHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupLiveRoutes(v1)
}

// setupLiveRoutes configures the live transcription routes
func (rt *Router) setupLiveRoutes(g *echo.Group) {
	liveGroup := g.Group("/live")

	if rt.liveHandler == nil {
		liveGroup.Any("/*", rt.notImplemented)
		return
	}

	liveGroup.GET("/config", rt.liveHandler.GetConfig)

	liveGroup.POST("/sessions", rt.liveHandler.StartSession)
	liveGroup.GET("/sessions/:id", rt.liveHandler.GetSession)
	liveGroup.DELETE("/sessions/:id", rt.liveHandler.EndSession)
	liveGroup.GET("/sessions/:id/stats", rt.liveHandler.SessionStats)

	liveGroup.POST("/sessions/:id/voice", rt.liveHandler.EnrollVoice)
	liveGroup.POST("/sessions/:id/transcribe", rt.liveHandler.LiveText)
	liveGroup.POST("/sessions/:id/chunks", rt.liveHandler.ProcessChunk)
	liveGroup.GET("/sessions/:id/chunks", rt.liveHandler.ArchivedChunks)
	liveGroup.POST("/sessions/:id/recording", rt.liveHandler.ProcessRecording)
	liveGroup.POST("/sessions/:id/verify", rt.liveHandler.Verify)

	liveGroup.GET("/meetings/:meetingId/transcript", rt.liveHandler.MeetingTranscript)
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":  "This endpoint is not yet implemented",
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	})
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"environment": rt.cfg.Server.Environment,
	})
}
