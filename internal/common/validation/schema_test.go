package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidateHazardReport(t *testing.T) {
	v := newTestValidator(t)

	valid := map[string]interface{}{
		"type":        "Fallen Tree",
		"description": "Large gum across both lanes of Coronation Drive.",
		"latitude":    -27.4766,
		"longitude":   153.0026,
	}

	tests := []struct {
		name      string
		mutate    func(m map[string]interface{})
		wantValid bool
		wantField string
	}{
		{"valid report", func(m map[string]interface{}) {}, true, ""},
		{"unknown type", func(m map[string]interface{}) { m["type"] = "Earthquake" }, false, "type"},
		{"blank description", func(m map[string]interface{}) { m["description"] = "   " }, false, "description"},
		{"latitude out of range", func(m map[string]interface{}) { m["latitude"] = 91.0 }, false, "latitude"},
		{"missing longitude", func(m map[string]interface{}) { delete(m, "longitude") }, false, "(root)"},
		{"too many words", func(m map[string]interface{}) {
			m["description"] = strings.Repeat("water ", MaxDescriptionWords+1)
		}, false, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := map[string]interface{}{}
			for k, val := range valid {
				report[k] = val
			}
			tt.mutate(report)

			result := v.ValidateHazardReport(report)
			assert.Equal(t, tt.wantValid, result.Valid, result.Messages())
			if tt.wantField != "" {
				require.NotEmpty(t, result.Errors)
				var fields []string
				for _, e := range result.Errors {
					fields = append(fields, e.Field)
				}
				assert.Contains(t, fields, tt.wantField)
			}
		})
	}
}

func TestValidatePersistedSession(t *testing.T) {
	v := newTestValidator(t)

	ok := v.ValidatePersistedSession([]byte(`{
		"type": "authenticated", "uid": "u1", "accountType": 3, "active": 1,
		"currentLocation": {"latitude": -27.47, "longitude": 153.02, "latitudeDelta": 0.01, "longitudeDelta": 0.01},
		"searchLocation": null, "locationPermission": {"status": "granted", "granted": true},
		"sessionStartTime": "2026-03-01T09:00:00Z", "expiry": "2026-03-01T10:00:00Z"
	}`))
	assert.True(t, ok.Valid, ok.Messages())

	assert.True(t, v.ValidatePersistedSession([]byte(`{"type":"unauthenticated"}`)).Valid)

	bad := v.ValidatePersistedSession([]byte(`{"type":"admin","accountType":7}`))
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)

	garbage := v.ValidatePersistedSession([]byte(`{not json`))
	assert.False(t, garbage.Valid)
	assert.Equal(t, "INVALID_DOCUMENT", garbage.Errors[0].Code)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  \n\t "))
	assert.Equal(t, 4, WordCount("Flooding on  Main\nStreet"))
}
