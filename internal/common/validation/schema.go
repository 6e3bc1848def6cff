package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MaxDescriptionWords bounds the free-text description of a hazard report.
const MaxDescriptionWords = 256

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the errors into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// Validator holds compiled schemas.
type Validator struct {
	hazardReport *gojsonschema.Schema
	session      *gojsonschema.Schema
}

// NewValidator compiles the built-in schemas.
func NewValidator() (*Validator, error) {
	hazard, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(hazardReportSchema))
	if err != nil {
		return nil, fmt.Errorf("compile hazard report schema: %w", err)
	}
	session, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(sessionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile session schema: %w", err)
	}
	return &Validator{hazardReport: hazard, session: session}, nil
}

// ValidateHazardReport checks a report document, including the description
// word limit that JSON Schema cannot express.
func (v *Validator) ValidateHazardReport(report interface{}) *ValidationResult {
	result := validate(v.hazardReport, gojsonschema.NewGoLoader(report))

	if m, ok := asMap(report); ok {
		if desc, ok := m["description"].(string); ok && WordCount(desc) > MaxDescriptionWords {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   "description",
				Message: fmt.Sprintf("must be at most %d words", MaxDescriptionWords),
				Code:    "TOO_MANY_WORDS",
			})
		}
	}
	return result
}

// ValidatePersistedSession checks a raw session record read from durable
// storage.
func (v *Validator) ValidatePersistedSession(raw []byte) *ValidationResult {
	return validate(v.session, gojsonschema.NewBytesLoader(raw))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "INVALID_DOCUMENT"}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
