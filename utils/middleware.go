package utils

import (
	"github.com/song-xingzhou/MVEN-Parking/services"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// UserIDFromTokenMiddleware extracts user ID and role from the verified
// token and stores them in the request context.
func UserIDFromTokenMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	ctx.Values().Set("userID", claims.ID)
	ctx.Values().Set("role", claims.Role)
	ctx.Next()
}

// AdminOnlyMiddleware ensures the requester has the admin role.
func AdminOnlyMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	if claims.Role != "admin" {
		JSONError(ctx, iris.StatusForbidden, "forbidden", "admin access required")
		return
	}
	ctx.Values().Set("userID", claims.ID)
	ctx.Values().Set("role", claims.Role)
	ctx.Next()
}

// ActorFromContext builds the engine's actor from claims resolved by the
// JWT middleware. ok is false when the request carries no identity.
func ActorFromContext(ctx iris.Context) (services.Actor, bool) {
	v := ctx.Values().Get("userID")
	userID, ok := v.(uint)
	if !ok {
		return services.Actor{}, false
	}
	role := services.RoleUser
	if r, ok := ctx.Values().Get("role").(string); ok && r != "" {
		role = services.Role(r)
	}
	return services.Actor{UserID: userID, Role: role}, true
}
