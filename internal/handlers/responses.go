package handlers

import (
	"errors"
	"net/http"

	"mongoflow/internal/config"
	"mongoflow/internal/db"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func errResp(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// databaseError maps store errors to a status code and a public message. The
// message is fixed text so nothing from the connection string can leak.
func databaseError(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrConfigMissing):
		return http.StatusServiceUnavailable, config.ErrConfigMissing.Error()
	case errors.Is(err, db.ErrUnavailable):
		return http.StatusServiceUnavailable, db.ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RequireDatabase guards routes that cannot work without MongoDB. Requests
// fail fast with 503 before the handler runs when no URI is configured.
func RequireDatabase(store DatabaseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Configured(); err != nil {
			code, msg := databaseError(err)
			errResp(c, code, msg)
			return
		}
		c.Next()
	}
}

func notFound(c *gin.Context) {
	errResp(c, http.StatusNotFound, "not found")
}

func methodNotAllowed(c *gin.Context) {
	errResp(c, http.StatusMethodNotAllowed, "method not allowed")
}
