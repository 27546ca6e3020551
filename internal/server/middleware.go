// Package server wires the HTTP router and its middleware.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/auth"
	"calixo/internal/handler"
	"calixo/internal/model"
)

// TokenVerifier validates a bearer token and returns the caller.
type TokenVerifier interface {
	Verify(raw string) (*auth.Identity, error)
}

// UserProvisioner returns the profile of an authenticated caller, creating it
// on first sight.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, userID, username string) (*model.Profile, bool, error)
}

var (
	errUnauthorized = apperr.New(apperr.KindUnauthorized, "missing or invalid bearer token")
	errForbidden    = apperr.New(apperr.KindForbidden, "insufficient permissions")
	errInternal     = apperr.New(apperr.KindInternal, "internal server error")
)

// AuthMiddleware verifies the bearer token and loads the caller's profile.
func AuthMiddleware(tokens TokenVerifier, users UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := tokens.Verify(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected bearer token")
			}
			handler.Error(c, errUnauthorized)
			return
		}

		p, _, err := users.EnsureUser(c, id.UserID, id.Username)
		if err != nil {
			handler.Error(c, apperr.Wrap(apperr.KindInternal, "failed to load profile", err))
			return
		}

		handler.SetProfile(c, p)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := handler.CurrentProfile(c)
		if p == nil {
			handler.Error(c, errUnauthorized)
			return
		}
		if !hasRole(p.Role, roles) {
			log.Warn().
				Str("user_id", p.UserID).
				Str("role", string(p.Role)).
				Str("path", c.FullPath()).
				Msg("Forbidden request to restricted route")
			handler.Error(c, errForbidden)
			return
		}
		c.Next()
	}
}

func hasRole(role model.Role, allowed []model.Role) bool {
	return slices.Contains(allowed, role)
}

// LoggingMiddleware logs every request once it has been served.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Info()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_id", userIDOf(c)).
			Msg("Request served")
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic in handler")
				if !c.Writer.Written() {
					handler.Error(c, errInternal)
				} else {
					c.Abort()
				}
			}
		}()
		c.Next()
	}
}

func userIDOf(c *gin.Context) string {
	if p := handler.CurrentProfile(c); p != nil {
		return p.UserID
	}
	return ""
}
