// Package handlers exposes the title service over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/eternisai/session-titler/internal/errors"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/routing"
	"github.com/eternisai/session-titler/internal/title_generation"
)

const requestIDHeader = "X-Request-ID"

// TitleService is the part of title_generation.Service used by the handlers.
type TitleService interface {
	OnIdle(ctx context.Context, sessionID string)
	Regenerate(ctx context.Context, sessionID string) (*title_generation.Result, error)
}

type Handler struct {
	service TitleService
	logger  *logger.Logger
}

func NewHandler(service TitleService, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("http"),
	}
}

// RegisterRoutes mounts the API, health and metrics endpoints.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/v1")
	api.Use(RequestContext(h.logger))
	{
		sessions := api.Group("/sessions/:id")
		{
			sessions.POST("/idle", h.Idle)
			sessions.POST("/title", h.Regenerate)
		}
	}
}

// RequestContext tags the request context with a run ID, taken from X-Request-ID
// when the caller sends one, and logs the finished request.
func RequestContext(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.GetHeader(requestIDHeader)
		if runID == "" {
			runID = logger.GenerateRunID()
		}

		ctx := logger.WithRunID(c.Request.Context(), runID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, runID)

		start := time.Now()
		c.Next()

		log.WithContext(ctx).Debug("request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Idle handles POST /v1/sessions/:id/idle. The notification is queued and the
// response does not wait for the title update.
func (h *Handler) Idle(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		apierrors.AbortWithBadRequest(c, "session id is required", nil)
		return
	}

	// The request context ends with the response; the queued run must not inherit it.
	h.service.OnIdle(context.WithoutCancel(c.Request.Context()), sessionID)

	c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID, "status": "queued"})
}

// Regenerate handles POST /v1/sessions/:id/title. It runs the pipeline right away
// and returns the applied title.
func (h *Handler) Regenerate(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		apierrors.AbortWithBadRequest(c, "session id is required", nil)
		return
	}

	ctx := logger.WithSessionID(c.Request.Context(), sessionID)
	log := h.logger.WithContext(ctx)

	result, err := h.service.Regenerate(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, title_generation.ErrNoTurns):
			apierrors.NotFound(c, "session has no conversation to title", apierrors.SessionDetails(sessionID))
		case errors.Is(err, routing.ErrNoUsableModel):
			apierrors.ServiceUnavailable(c, "no usable title model", apierrors.SessionDetails(sessionID))
		default:
			log.Error("title regeneration failed", slog.String("error", err.Error()))
			apierrors.Internal(c, "failed to generate title", apierrors.SessionDetails(sessionID))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":  result.Title,
		"model":  result.Model.String(),
		"source": result.Source,
	})
}
