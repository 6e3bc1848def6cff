package models

import "fmt"

// Viewport is a map region: a centre point plus the visible span in degrees.
type Viewport struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("(%.5f, %.5f) ±(%.4f, %.4f)", v.Latitude, v.Longitude, v.LatitudeDelta, v.LongitudeDelta)
}

// LocationFix is a resolved geographic viewport. It is a plain value and is
// never mutated after the resolver produces it.
type LocationFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpanLat   float64 `json:"spanLat"`
	SpanLon   float64 `json:"spanLon"`
}

// Viewport converts the fix into the shape the session stores.
func (f LocationFix) Viewport() Viewport {
	return Viewport{
		Latitude:       f.Latitude,
		Longitude:      f.Longitude,
		LatitudeDelta:  f.SpanLat,
		LongitudeDelta: f.SpanLon,
	}
}

// FixFromViewport is the inverse of LocationFix.Viewport.
func FixFromViewport(v Viewport) LocationFix {
	return LocationFix{
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
		SpanLat:   v.LatitudeDelta,
		SpanLon:   v.LongitudeDelta,
	}
}

// Tier names one strategy of the location fallback chain.
type Tier string

const (
	TierDevice  Tier = "device"
	TierIP      Tier = "ip"
	TierCountry Tier = "country"
	TierDefault Tier = "default"
)

// PermissionStatus is the outcome of a foreground location permission request.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// PermissionOutcome captures the last permission request so every consumer
// of the session can see it.
type PermissionOutcome struct {
	Status  PermissionStatus `json:"status"`
	Granted bool             `json:"granted"`
	// TimedOut is set when the request did not settle within its bounded wait.
	TimedOut bool `json:"timedOut,omitempty"`
}

// Resolution is what the location resolver hands back: always a fix, the
// tier that produced it and, when the device tier ran far enough to ask,
// the permission outcome.
type Resolution struct {
	Fix        LocationFix                 `json:"fix"`
	Tier       Tier                        `json:"tier"`
	Permission Optional[PermissionOutcome] `json:"permission"`
}
