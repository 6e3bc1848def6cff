package location

import (
	"strings"

	"hazard-reporter/internal/models"
)

// countryCenters maps ISO 3166-1 alpha-2 codes to a representative centre
// and a span covering roughly the populated extent of the country.
var countryCenters = map[string]models.LocationFix{
	"AU": {Latitude: -27.4698, Longitude: 153.0251, SpanLat: 30, SpanLon: 40},
	"NZ": {Latitude: -41.2865, Longitude: 174.7762, SpanLat: 14, SpanLon: 12},
	"PG": {Latitude: -9.4438, Longitude: 147.1803, SpanLat: 10, SpanLon: 14},
	"FJ": {Latitude: -18.1416, Longitude: 178.4419, SpanLat: 4, SpanLon: 4},
	"ID": {Latitude: -6.2088, Longitude: 106.8456, SpanLat: 16, SpanLon: 46},
	"PH": {Latitude: 14.5995, Longitude: 120.9842, SpanLat: 16, SpanLon: 10},
	"SG": {Latitude: 1.3521, Longitude: 103.8198, SpanLat: 0.4, SpanLon: 0.5},
	"MY": {Latitude: 3.139, Longitude: 101.6869, SpanLat: 7, SpanLon: 16},
	"JP": {Latitude: 35.6762, Longitude: 139.6503, SpanLat: 20, SpanLon: 22},
	"CN": {Latitude: 39.9042, Longitude: 116.4074, SpanLat: 35, SpanLon: 60},
	"IN": {Latitude: 28.6139, Longitude: 77.209, SpanLat: 30, SpanLon: 30},
	"US": {Latitude: 39.8283, Longitude: -98.5795, SpanLat: 25, SpanLon: 58},
	"CA": {Latitude: 45.4215, Longitude: -75.6972, SpanLat: 30, SpanLon: 80},
	"GB": {Latitude: 51.5074, Longitude: -0.1278, SpanLat: 10, SpanLon: 10},
	"IE": {Latitude: 53.3498, Longitude: -6.2603, SpanLat: 4, SpanLon: 5},
	"DE": {Latitude: 52.52, Longitude: 13.405, SpanLat: 8, SpanLon: 10},
	"FR": {Latitude: 48.8566, Longitude: 2.3522, SpanLat: 10, SpanLon: 12},
	"BR": {Latitude: -15.7939, Longitude: -47.8828, SpanLat: 38, SpanLon: 40},
	"ZA": {Latitude: -25.7479, Longitude: 28.2293, SpanLat: 13, SpanLon: 16},
}

// CountryCenter looks up the representative fix for an ISO country code.
func CountryCenter(code string) (models.LocationFix, bool) {
	fix, ok := countryCenters[strings.ToUpper(strings.TrimSpace(code))]
	return fix, ok
}
