package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userCtxKey is where authMiddleware stores the authenticated operator id.
const userCtxKey = "userId"

// authMiddleware guards the /api/v1 tree. Chamber commands and profile
// mutations only run for requests carrying a valid bearer token.
func (h *Handler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthorized(c, "missing Authorization header")
		return
	}

	token, ok := bearerToken(header)
	if !ok {
		abortUnauthorized(c, "invalid Authorization header format")
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		abortUnauthorized(c, "invalid or expired token")
		return
	}

	c.Set(userCtxKey, userId)
	c.Next()
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>"
// header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
