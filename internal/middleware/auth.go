package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/modules/serializer"
)

const (
	ActorHeader = "X-Actor"
	ActorKey    = "actor"
)

// BearerAuth checks the shared API token and records the calling actor.
// The actor from X-Actor becomes the default assigned_by of writes.
func BearerAuth(cfg *config.Config) gin.HandlerFunc {
	expected := []byte(cfg.Root.ApiBearerToken)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}
		raw := []byte(strings.TrimPrefix(auth, "Bearer "))
		if len(expected) == 0 || subtle.ConstantTimeCompare(raw, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor != "" {
			c.Set(ActorKey, actor)
		}

		// project_id lets traces be filtered per project
		if projectID := c.Param("project_id"); projectID != "" {
			span := trace.SpanFromContext(c.Request.Context())
			if span.SpanContext().IsValid() {
				span.SetAttributes(attribute.String("project_id", projectID))
			}
		}

		c.Next()
	}
}
