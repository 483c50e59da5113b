package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"picoyplaca/internal/logger"
	pkgerrors "picoyplaca/pkg/errors"
	"picoyplaca/pkg/logging"
)

const principalContextKey = "principal"

type TokenVerifier interface {
	Verify(tokenString string) (*Principal, error)
}

// Authenticate requires a valid bearer token and stores the caller in both
// the gin context and the request context.
func Authenticate(verifier TokenVerifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, errMissingToken)
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			log.WarnwCtx(c.Request.Context(), "Rejected bearer token", "error", err, "path", c.FullPath())
			abort(c, err)
			return
		}

		ctx := WithPrincipal(c.Request.Context(), principal)
		ctx = logging.WithUser(ctx, principal.Identity())
		c.Request = c.Request.WithContext(ctx)
		c.Set(principalContextKey, principal)

		c.Next()
	}
}

// RequireRole lets the request through only when the caller has one of roles.
// It must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			abort(c, errMissingToken)
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		abort(c, errInsufficientRole.WithDetail("role", principal.Role))
	}
}

func PrincipalFrom(c *gin.Context) *Principal {
	if v, ok := c.Get(principalContextKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	p, _ := FromContext(c.Request.Context())
	return p
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
}
