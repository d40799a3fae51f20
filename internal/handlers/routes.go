package handlers

import (
	"log/slog"
	"net/http"

	"mongoflow/internal/config"
	"mongoflow/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Route binds one method and path to its handler chain.
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// Routes returns the route table in registration order.
func (h *Handler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/", Handlers: []gin.HandlerFunc{h.Root}},
		{Method: http.MethodGet, Path: "/health", Handlers: []gin.HandlerFunc{h.Health}},
		{Method: http.MethodGet, Path: "/health/db", Handlers: []gin.HandlerFunc{RequireDatabase(h.store), h.DatabaseHealth}},
	}
}

// NewRouter builds the gin engine with the full middleware chain and every
// route from the table. The middleware order is:
//  1. RequestID
//  2. Recovery (panic -> 500)
//  3. RequestLogger
//  4. CORS (answers preflight before dispatch)
func NewRouter(cors config.CORSConfig, store DatabaseStore, logger *slog.Logger) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(cors),
	)

	h := NewHandler(store)
	for _, r := range h.Routes() {
		engine.Handle(r.Method, r.Path, r.Handlers...)
	}

	engine.NoRoute(notFound)
	engine.NoMethod(methodNotAllowed)

	return engine
}
