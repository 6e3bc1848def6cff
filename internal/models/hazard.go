package models

import (
	"time"
)

// HazardCollection holds hazard reports keyed by hazard id.
const HazardCollection = "hazards"

// HazardType is one of the reportable hazard categories.
type HazardType string

const (
	HazardFlood           HazardType = "Flood"
	HazardFallenTree      HazardType = "Fallen Tree"
	HazardFallenPowerline HazardType = "Fallen Powerline"
	HazardFire            HazardType = "Fire"
)

// HazardTypes lists the categories offered to reporters.
func HazardTypes() []HazardType {
	return []HazardType{HazardFlood, HazardFallenTree, HazardFallenPowerline, HazardFire}
}

// HazardReport is what a user submits.
type HazardReport struct {
	Type        HazardType `json:"type"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
}

// Hazard is a stored report.
type Hazard struct {
	ID          string     `json:"id"`
	Type        HazardType `json:"type"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	ReportedBy  string     `json:"reportedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	Upvotes     int        `json:"upvotes"`
	Downvotes   int        `json:"downvotes"`
}

// Fields renders the hazard as a document body. The id is the document key
// and is not repeated in the body.
func (h Hazard) Fields() map[string]interface{} {
	return map[string]interface{}{
		"type":        string(h.Type),
		"description": h.Description,
		"latitude":    h.Latitude,
		"longitude":   h.Longitude,
		"reportedBy":  h.ReportedBy,
		"createdAt":   h.CreatedAt.UTC().Format(time.RFC3339),
		"upvotes":     h.Upvotes,
		"downvotes":   h.Downvotes,
	}
}

// HazardFromFields reads a hazard document. Missing or malformed fields
// keep their zero value.
func HazardFromFields(id string, fields map[string]interface{}) Hazard {
	h := Hazard{ID: id}
	if v, ok := fields["type"].(string); ok {
		h.Type = HazardType(v)
	}
	if v, ok := fields["description"].(string); ok {
		h.Description = v
	}
	h.Latitude = asFloat(fields["latitude"])
	h.Longitude = asFloat(fields["longitude"])
	if v, ok := fields["reportedBy"].(string); ok {
		h.ReportedBy = v
	}
	switch v := fields["createdAt"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			h.CreatedAt = t
		}
	case time.Time:
		h.CreatedAt = v
	}
	if n, ok := asInt(fields["upvotes"]); ok {
		h.Upvotes = n
	}
	if n, ok := asInt(fields["downvotes"]); ok {
		h.Downvotes = n
	}
	return h
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// VoteKind selects which counter a vote increments.
type VoteKind string

const (
	Upvote   VoteKind = "upvote"
	Downvote VoteKind = "downvote"
)

// Field returns the document field the vote increments.
func (v VoteKind) Field() string {
	if v == Downvote {
		return "downvotes"
	}
	return "upvotes"
}

// HazardDistance pairs a hazard with its distance from a query point.
type HazardDistance struct {
	Hazard     Hazard  `json:"hazard"`
	DistanceKm float64 `json:"distanceKm"`
}
