// Package geo provides spherical distance math shared by every layer that
// makes a visibility decision. Server filtering and any client-side
// re-filtering must agree bit for bit, so this is the only place the
// haversine formula is written down
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius of the WGS-84 sphere approximation
const EarthRadiusMeters = 6371000.0

// Location is a WGS-84 coordinate pair in degrees
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineMeters computes the great-circle distance between a and b
//
//	h = sin^2(dLat/2) + cos(lat1) * cos(lat2) * sin^2(dLng/2)
//	d = 2 * R * atan2(sqrt(h), sqrt(1-h))
func HaversineMeters(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether p lies within radiusMeters of center
// the boundary is closed: a point exactly at radiusMeters is inside
func WithinRadius(center, p Location, radiusMeters float64) bool {
	return HaversineMeters(center, p) <= radiusMeters
}

// BBox is a latitude and longitude window used as a cheap prefilter
// before exact circle tests. MinLng > MaxLng means the box wraps the
// antimeridian
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundingBox returns the smallest lat/lng window guaranteed to contain
// the circle of radiusMeters around center. Near the poles the longitude
// span degenerates, so the box widens to the full circle of longitudes
func BoundingBox(center Location, radiusMeters float64) BBox {
	dLatDeg := (radiusMeters / EarthRadiusMeters) * 180 / math.Pi

	minLat := center.Lat - dLatDeg
	maxLat := center.Lat + dLatDeg

	// box touches a pole: longitude no longer narrows anything
	if minLat <= -90 || maxLat >= 90 {
		return BBox{
			MinLat: math.Max(minLat, -90),
			MaxLat: math.Min(maxLat, 90),
			MinLng: -180,
			MaxLng: 180,
		}
	}

	// shrink the longitude degree by the cosine of the widest latitude in the box
	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	cosLat := math.Cos(widest * math.Pi / 180)
	dLngDeg := dLatDeg / cosLat

	minLng := center.Lng - dLngDeg
	maxLng := center.Lng + dLngDeg
	if dLngDeg >= 180 {
		minLng, maxLng = -180, 180
	} else {
		// normalize into [-180, 180]; a wrapped box keeps MinLng > MaxLng
		minLng = wrapLng(minLng)
		maxLng = wrapLng(maxLng)
	}

	return BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
}

// Contains reports whether l falls inside the box, honoring antimeridian wrap
func (b BBox) Contains(l Location) bool {
	if l.Lat < b.MinLat || l.Lat > b.MaxLat {
		return false
	}
	if b.MinLng <= b.MaxLng {
		return l.Lng >= b.MinLng && l.Lng <= b.MaxLng
	}
	return l.Lng >= b.MinLng || l.Lng <= b.MaxLng
}

func wrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
