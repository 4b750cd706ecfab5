package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/auth"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
)

const (
	actorKey   = "actor"
	blockedKey = "blocked"

	// TokenQueryParam carries the token for clients that cannot set headers (browser websockets).
	TokenQueryParam = "access_token"
)

// TokenValidator parses a bearer token into claims
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, apperrors.Unauthorized("Missing authorization token", nil))
			return
		}
		if err := authenticate(c, v, token); err != nil {
			abort(c, apperrors.Unauthorized("Invalid or expired token", err))
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the actor when a valid token is present and lets anonymous requests through
func OptionalAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			// an unusable token is treated as no session at all
			_ = authenticate(c, v, token)
		}
		c.Next()
	}
}

// RejectBlocked stops blocked accounts from changing ride state
func RejectBlocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsBlocked(c) {
			abort(c, apperrors.NewAppError("ACCOUNT_BLOCKED", "Your account is blocked", http.StatusForbidden, nil))
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor, if any
func ActorFromContext(c *gin.Context) (ride.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return ride.Actor{}, false
	}
	actor, ok := v.(ride.Actor)
	return actor, ok
}

// IsBlocked reports the blocked flag carried by the caller's token
func IsBlocked(c *gin.Context) bool {
	return c.GetBool(blockedKey)
}

func authenticate(c *gin.Context, v TokenValidator, token string) error {
	claims, err := v.ValidateToken(token)
	if err != nil {
		return err
	}
	role := ride.Role(claims.Role)
	if !role.IsValid() {
		return auth.ErrMissingClaim
	}
	c.Set(actorKey, ride.Actor{ID: claims.UserID, Role: role})
	c.Set(blockedKey, claims.Blocked)
	return nil
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query(TokenQueryParam)
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.Status, err)
}
