package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/storage"
	"github.com/song-xingzhou/MVEN-Parking/utils"

	"github.com/kataras/iris/v12"
)

var nearbyCtx = context.Background()

const nearbyCacheTTL = 30 * time.Second

// NearbySpaces returns bookable spaces within a radius of a point,
// nearest first. Results are cached briefly in Redis keyed on the
// rounded query, since map clients poll this endpoint aggressively.
func NearbySpaces(ctx iris.Context) {
	lng, lngErr := ctx.URLParamFloat64("lng")
	lat, latErr := ctx.URLParamFloat64("lat")
	if lngErr != nil || latErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "lng and lat are required", ctx)
		return
	}

	radius := 5000.0
	if v, err := ctx.URLParamFloat64("radius"); err == nil && v > 0 {
		radius = v
	}
	limit := ctx.URLParamIntDefault("limit", 0)

	cacheKey := fmt.Sprintf("nearby:%.4f:%.4f:%.0f:%d", lng, lat, radius, limit)
	if storage.Redis != nil {
		if cached, err := storage.Redis.Get(nearbyCtx, cacheKey).Result(); err == nil {
			ctx.ContentType("application/json")
			ctx.WriteString(cached)
			return
		}
	}

	spaces, err := locator.FindNearby(lng, lat, radius, limit)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	body, marshalErr := json.Marshal(iris.Map{"success": true, "data": spaces})
	if marshalErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if storage.Redis != nil {
		storage.Redis.Set(nearbyCtx, cacheKey, string(body), nearbyCacheTTL)
	}

	ctx.ContentType("application/json")
	ctx.Write(body)
}
