package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lifeline/internal/core/apperror"
	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Principal, error)
}

// Auth middleware validates the bearer token and binds the request to the
// token's owner. Every entity route acts on exactly that owner.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		principal, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}
		if id.IsNil(principal.OwnerID) {
			abortUnauthorized(c, "token carries no owner")
			return
		}

		ctx := appctx.WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)

		c.Set("subject", principal.Subject)
		c.Set("owner_id", principal.OwnerID.String())

		c.Next()
	}
}

// RequireScope middleware checks that the token was granted scope.
// The "*" scope satisfies every check.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetPrincipal(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if appctx.HasScope(ctx, scope) || appctx.HasScope(ctx, "*") {
			c.Next()
			return
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient scope").
				WithDetail("required_scope", scope),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
