package utils

import "math"

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371.0

// Box is a latitude/longitude range guaranteed to contain every point within
// the radius it was built for. It is an index-friendly superset; callers must
// still apply the exact distance check.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point falls inside the box.
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// BoundingBox returns the box around (lat, lng) covering radiusKm in every
// direction. The longitude delta widens by 1/cos(lat) because longitude
// degrees shrink away from the equator; a flat offset would under-restrict
// near the equator and over-restrict near the poles.
func BoundingBox(lat, lng, radiusKm float64) Box {
	latDelta := (radiusKm / earthRadiusKm) * (180.0 / math.Pi)

	cosLat := math.Cos(lat * math.Pi / 180.0)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lngDelta := latDelta / cosLat

	return Box{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// Distance returns the haversine great-circle distance in kilometers.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(la1)*math.Cos(la2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
