package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/httputil"
)

const ContextActor = "actor"

type AuthMiddleware struct {
	jwt       auth.JWTService
	staff     repository.StaffRepository
	positions *cache.Cache
}

// NewAuthMiddleware caches staff positions for ttl. Position changes take
// effect once the cached entry expires.
func NewAuthMiddleware(jwt auth.JWTService, staff repository.StaffRepository, ttl, cleanup time.Duration) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:       jwt,
		staff:     staff,
		positions: cache.New(ttl, cleanup),
	}
}

// Authenticate verifies the bearer token and stores the caller's model.Actor
// in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
		actor, err := claims.Actor()
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		actor.Positions = nil
		if actor.Role == model.RoleStaff {
			positions, err := m.loadPositions(c, actor)
			if err != nil {
				httputil.RespondWithError(c, apperrors.Internal(err))
				return
			}
			actor.Positions = positions
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

func (m *AuthMiddleware) loadPositions(c *gin.Context, actor model.Actor) ([]model.Position, error) {
	key := actor.AccountID.String()
	if cached, ok := m.positions.Get(key); ok {
		return cached.([]model.Position), nil
	}

	positions, err := m.staff.ListPositions(c.Request.Context(), actor.AccountID)
	if err != nil {
		return nil, err
	}
	m.positions.SetDefault(key, positions)
	return positions, nil
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
