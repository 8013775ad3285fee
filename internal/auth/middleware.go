package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"botfleet/internal/model"
)

const (
	identityKey = "auth_identity"
	botIDKey    = "auth_bot_id"
)

// OperatorMiddleware authenticates operator RPCs via the X-API-Key header
// (§6.4 auth option (b)) and stores the resolved Identity in the gin
// context for handlers to read with IdentityFromContext.
func OperatorMiddleware(authn *APIKeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader("X-API-Key")
		if rawKey == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				rawKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		id, err := authn.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			respondUnauthorized(c, err)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// AgentMiddleware authenticates agent-only RPCs via the bot-system token
// (§6.4 auth option (c)). botIDParam names the gin route param holding the
// numeric bot ID.
func AgentMiddleware(authn *BotSystemTokenAuthenticator, botIDParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		botID, err := strconv.ParseInt(c.Param(botIDParam), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid bot id"})
			return
		}

		rawToken := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := authn.Authenticate(c.Request.Context(), botID, rawToken); err != nil {
			respondUnauthorized(c, err)
			return
		}

		c.Set(botIDKey, botID)
		c.Next()
	}
}

// IdentityFromContext returns the operator identity set by
// OperatorMiddleware, or nil if none is present.
func IdentityFromContext(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

// BotIDFromContext returns the bot ID set by AgentMiddleware.
func BotIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(botIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func respondUnauthorized(c *gin.Context, err error) {
	if errors.Is(err, model.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
}
