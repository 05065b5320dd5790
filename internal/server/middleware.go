package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/vetsub/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	contextActorKey = "actor"
)

// ActorContext reads the caller identity forwarded by the upstream identity
// layer and attaches it to the request context for audit and logging.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		if actorID == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := Actor{ID: actorID, Role: role}
		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), actor.ID, actor.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
