package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/response"
	"github.com/certprep/certprep-backend/internal/service"
)

const (
	// ContextKeyIdentity is the Gin context key for the resolved exam owner.
	ContextKeyIdentity = "identity"
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"

	// SessionHeader carries the anonymous session token both ways.
	SessionHeader = "X-Session-ID"
	// SessionCookie is the fallback carrier for browsers.
	SessionCookie = "session_id"
)

// Identity resolves the owner of every request. A bearer token must be a
// valid JWT; otherwise the X-Session-ID header or session_id cookie names an
// anonymous session, and a fresh token is issued when neither is present.
// Anonymous tokens are echoed in the X-Session-ID response header.
func Identity(identities *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			id, claims, err := identities.FromBearer(token)
			if err != nil {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
				return
			}
			c.Set(ContextKeyIdentity, id)
			c.Set(ContextKeyClaims, claims)
			c.Next()
			return
		}

		token := c.GetHeader(SessionHeader)
		if token == "" {
			token, _ = c.Cookie(SessionCookie)
		}
		if token == "" {
			token = identities.NewSessionID()
		}

		id, err := identities.Anonymous(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSessionID) {
				response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidSessionID)
				return
			}
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Header(SessionHeader, token)
		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

// RequireUser accepts only requests carrying a valid bearer token.
func RequireUser(identities *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		id, claims, err := identities.FromBearer(token)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Set(ContextKeyIdentity, id)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetIdentity retrieves the resolved owner from the Gin context. The zero
// Identity is returned when no middleware ran.
func GetIdentity(c *gin.Context) model.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return model.Identity{}
	}
	id, _ := val.(model.Identity)
	return id
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
