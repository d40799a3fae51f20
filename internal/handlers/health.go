package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	rootMessage = "MongoFlow Python Service is running"
	statusOK    = "ok"
)

type HealthResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type DatabaseHealthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DatabaseStore is the subset of *db.Store used by the HTTP handlers.
// Declaring it as an interface allows test doubles to be injected.
type DatabaseStore interface {
	Configured() error
	Ping(ctx context.Context) error
	Database() string
	CollectionName() string
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	store DatabaseStore
}

func NewHandler(store DatabaseStore) *Handler {
	return &Handler{store: store}
}

// Root handles GET /. It reads no configuration and never touches the
// database, so it answers even when MongoDB is not configured.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Message: rootMessage,
		Status:  statusOK,
	})
}

// Health handles GET /health, the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "healthy"})
}

// DatabaseHealth handles GET /health/db.
// It pings MongoDB and returns 200 only when the ping succeeds.
func (h *Handler) DatabaseHealth(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		code, msg := databaseError(err)
		c.JSON(code, DatabaseHealthResponse{
			Status: "unhealthy",
			Error:  msg,
		})
		return
	}

	c.JSON(http.StatusOK, DatabaseHealthResponse{
		Status:     "healthy",
		Database:   h.store.Database(),
		Collection: h.store.CollectionName(),
	})
}
