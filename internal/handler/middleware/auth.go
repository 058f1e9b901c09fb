package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/auth"
	"github.com/gin-gonic/gin"
)

const ctxIdentity = "identity"

type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Identity, error)
}

// Authenticate requires a valid bearer token and stores the identity on the context.
func Authenticate(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		id, err := v.ValidateAccessToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(ctxIdentity, id)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok
}

// CallerFrom builds the service-level caller for the current request. Without
// an authenticated identity the caller is anonymous.
func CallerFrom(c *gin.Context) domain.Caller {
	caller := domain.Caller{
		IP:        c.ClientIP(),
		RequestID: RequestIDFrom(c),
	}
	if id, ok := identityFrom(c); ok {
		caller.UserID = id.UserID
		caller.Role = id.Role
	}
	return caller
}
