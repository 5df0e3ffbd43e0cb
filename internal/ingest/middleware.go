package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const orgContextKey = "ingestOrgID"

// APIKeyAuthMiddleware validates the X-Ingest-API-Key header and sets the
// organization on the gin context for the manual-ingest handlers.
func APIKeyAuthMiddleware(repo *Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-Ingest-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := repo.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(orgContextKey, key.OrganizationID)
		c.Next()
	}
}
