package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/session"
	"authgate/internal/domain/auth/token"
)

const claimsContextKey = "auth_claims"

// RequireSession guards a route group with bearer-token authentication.
// The token must decode cleanly and its session must still be present in
// the ephemeral store; either failing rejects the request with 403.
func RequireSession(sessions *session.Manager, logger model.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			RespondError(c, http.StatusForbidden, "Not authenticated", nil)
			c.Abort()
			return
		}

		claims, err := sessions.Decode(raw)
		if err != nil {
			RespondError(c, http.StatusForbidden, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		active, err := sessions.Exists(c.Request.Context(), claims.Username())
		if err != nil {
			logger.Error("session presence check failed: %v", err)
			RespondError(c, http.StatusForbidden, "Invalid or expired token", nil)
			c.Abort()
			return
		}
		if !active {
			RespondError(c, http.StatusForbidden, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// SessionClaims retrieves the verified claims stored by RequireSession.
func SessionClaims(c *gin.Context) (*token.Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*token.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", false
	}
	return tok, true
}
