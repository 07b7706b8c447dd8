// Package api provides the HTTP surface of the notification service: the live event stream, the notification
// list and its read state, and notification preferences.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/cyverse-de/project-notifications/registry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var log = common.Log.WithField("package", "api")

// DefaultKeepalive is the interval between keepalive comments on an idle event stream.
const DefaultKeepalive = 30 * time.Second

// Notifications manages a user's stored notifications.
type Notifications interface {
	List(ctx context.Context, callerID string, filter *model.NotificationFilter) ([]*model.NotificationResponse, error)
	MarkRead(ctx context.Context, callerID, notificationID string) error
	MarkAllRead(ctx context.Context, callerID string) (int64, error)
	UnreadCount(ctx context.Context, callerID string) (int64, error)
}

// Preferences reads and writes a user's notification preferences.
type Preferences interface {
	Get(ctx context.Context, userID string) (*model.Preferences, error)
	Set(ctx context.Context, userID string, prefs *model.Preferences) (*model.Preferences, error)
}

// Subscriptions opens and closes live connections.
type Subscriptions interface {
	Subscribe(userID string) *registry.Connection
	Unsubscribe(conn *registry.Connection)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Settings holds the HTTP server configuration.
type Settings struct {
	JWTSecret string
	Keepalive time.Duration
}

// Server is the HTTP server.
type Server struct {
	router        *gin.Engine
	keepalive     time.Duration
	notifications Notifications
	preferences   Preferences
	subscriptions Subscriptions
	health        HealthChecker
}

// New creates a new HTTP server and registers its routes.
func New(
	settings *Settings,
	notifications Notifications,
	preferences Preferences,
	subscriptions Subscriptions,
	health HealthChecker,
) *Server {
	keepalive := settings.Keepalive
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}

	router := gin.New()
	router.Use(Recovery(), RequestLogger())

	s := &Server{
		router:        router,
		keepalive:     keepalive,
		notifications: notifications,
		preferences:   preferences,
		subscriptions: subscriptions,
		health:        health,
	}
	s.setupRoutes(JWTAuth(settings.JWTSecret))

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	notifications := s.router.Group("/notifications")
	notifications.Use(auth)
	{
		notifications.GET("/subscribe", s.handleSubscribe)
		notifications.GET("", s.handleList)
		notifications.GET("/unread-count", s.handleUnreadCount)
		notifications.POST("/read-all", s.handleMarkAllRead)
		notifications.POST("/:id/read", s.handleMarkRead)
		notifications.GET("/settings", s.handleGetSettings)
		notifications.PUT("/settings", s.handlePutSettings)
	}

	s.router.GET("/healthz", s.handleHealth)
}

// respondError maps an error to an HTTP status code.
func respondError(c *gin.Context, err error) {
	var (
		invalid  common.ValidationError
		notFound common.NotFoundError
		denied   common.AccessDeniedError
	)

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Error()})
	default:
		log.WithField("path", c.FullPath()).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// handleSubscribe streams live events to the caller until the client disconnects or the connection is
// replaced by a newer one.
func (s *Server) handleSubscribe(c *gin.Context) {
	userID := UserID(c)
	conn := s.subscriptions.Subscribe(userID)
	defer s.subscriptions.Unsubscribe(conn)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-conn.Events():
			c.SSEvent(event.Name, event.Data)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-conn.Done():
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) handleList(c *gin.Context) {
	filter := &model.NotificationFilter{}

	if category := c.Query("category"); category != "" {
		parsed, err := model.ParseCategory(category)
		if err != nil {
			respondError(c, common.NewValidationError("%s", err.Error()))
			return
		}
		filter.Category = parsed
	}

	if unreadOnly := c.Query("unreadOnly"); unreadOnly != "" {
		parsed, err := strconv.ParseBool(unreadOnly)
		if err != nil {
			respondError(c, common.NewValidationError("invalid unreadOnly value: %s", unreadOnly))
			return
		}
		filter.UnreadOnly = parsed
	}

	result, err := s.notifications.List(c.Request.Context(), UserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.notifications.UnreadCount(c.Request.Context(), UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, common.NewValidationError("invalid notification ID: %s", id))
		return
	}

	if err := s.notifications.MarkRead(c.Request.Context(), UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	count, err := s.notifications.MarkAllRead(c.Request.Context(), UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	prefs, err := s.preferences.Get(c.Request.Context(), UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var prefs model.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		respondError(c, common.NewValidationError("invalid preferences: %s", err.Error()))
		return
	}

	saved, err := s.preferences.Set(c.Request.Context(), UserID(c), &prefs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
