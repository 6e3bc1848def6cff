package hazard

import "math"

const earthRadiusKm = 6371.0

// distanceKm is the great-circle distance between two points.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// box is a coarse lat/lon rectangle around a circle. hasLon is false when
// the circle reaches a pole or crosses the antimeridian; callers then
// filter on latitude only.
type box struct {
	minLat, maxLat float64
	minLon, maxLon float64
	hasLon         bool
}

// boundingBox covers every point within radiusKm of (lat, lon) as measured
// by distanceKm.
func boundingBox(lat, lon, radiusKm float64) box {
	deg := 180 / math.Pi
	angular := radiusKm / earthRadiusKm
	dLat := angular * deg
	b := box{
		minLat: math.Max(lat-dLat, -90),
		maxLat: math.Min(lat+dLat, 90),
	}
	if b.minLat == -90 || b.maxLat == 90 {
		return b
	}

	// widest longitude reach of the circle, which lies poleward of its centre
	reach := math.Sin(angular) / math.Cos(lat/deg)
	if reach >= 1 {
		return b
	}
	dLon := math.Asin(reach) * deg
	if lon-dLon < -180 || lon+dLon > 180 {
		return b
	}
	b.minLon, b.maxLon, b.hasLon = lon-dLon, lon+dLon, true
	return b
}
