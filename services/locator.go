package services

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// SpaceIndex is the spatial query the locator needs from storage: all
// bookable (available and approved) spaces whose point falls inside a
// latitude/longitude bounding box.
type SpaceIndex interface {
	BookableSpacesWithin(minLat, maxLat, minLng, maxLng float64) ([]models.ParkingSpace, error)
}

// NearbySpace is a space annotated with its distance from the query point.
type NearbySpace struct {
	models.ParkingSpace
	DistanceMeters float64 `json:"distanceMeters"`
}

// MarshalJSON splices distanceMeters into the space's serialized form.
// Without it the embedded space's own marshaler is promoted and the
// distance never reaches the wire.
func (n NearbySpace) MarshalJSON() ([]byte, error) {
	base, err := n.ParkingSpace.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	dist, err := json.Marshal(n.DistanceMeters)
	if err != nil {
		return nil, err
	}
	fields["distanceMeters"] = dist
	return json.Marshal(fields)
}

// Locator finds bookable spaces within a radius of a point, nearest
// first. Distances use the spherical haversine approximation with
// R = 6371000 m.
type Locator struct {
	spaces SpaceIndex
}

func NewLocator(spaces SpaceIndex) *Locator {
	return &Locator{spaces: spaces}
}

const earthRadiusMeters = 6371000.0

// FindNearby returns spaces within radiusMeters of (lng, lat), ascending
// by distance, at most limit entries (limit <= 0 means no cap). A query
// matching nothing returns an empty slice, not an error.
func (l *Locator) FindNearby(lng, lat, radiusMeters float64, limit int) ([]NearbySpace, error) {
	if lat < -90 || lat > 90 {
		return nil, &ValidationError{Field: "latitude", Reason: "must be within [-90, 90]"}
	}
	if lng < -180 || lng > 180 {
		return nil, &ValidationError{Field: "longitude", Reason: "must be within [-180, 180]"}
	}
	if radiusMeters <= 0 {
		return nil, &ValidationError{Field: "radius", Reason: "must be positive"}
	}

	// Coarse bounding box so the store can use its lat/lng indexes; the
	// exact radius cut happens on the haversine distance below. The box
	// does not wrap at longitude +/-180, so queries straddling the
	// antimeridian can miss spaces on the far side.
	dLat := (radiusMeters / earthRadiusMeters) * 180 / math.Pi
	cosLat := math.Cos(lat * math.Pi / 180)
	dLng := dLat
	if cosLat > 1e-6 {
		dLng = dLat / cosLat
	}

	candidates, err := l.spaces.BookableSpacesWithin(lat-dLat, lat+dLat, lng-dLng, lng+dLng)
	if err != nil {
		return nil, err
	}

	results := make([]NearbySpace, 0, len(candidates))
	for i := range candidates {
		d := Haversine(lat, lng, candidates[i].Latitude, candidates[i].Longitude)
		if d <= radiusMeters {
			results = append(results, NearbySpace{ParkingSpace: candidates[i], DistanceMeters: math.Round(d)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Haversine returns the great-circle distance in meters between two
// points on a sphere of radius 6371 km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(la1)*math.Cos(la2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
