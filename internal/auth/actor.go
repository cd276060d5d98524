package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

const actorContextKey = "auth.actor"

// Actor is the capability token for the current caller: the identity and
// role set every permission decision is made from. It is passed explicitly
// into services instead of being read from ambient state.
type Actor struct {
	UserID uuid.UUID
	Roles  workflows.RoleSet
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Roles[workflows.RoleAdmin]
}

// ActorFrom extracts the actor placed in the gin context by the middleware.
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}

func setActor(c *gin.Context, actor Actor) {
	c.Set(actorContextKey, actor)
}
