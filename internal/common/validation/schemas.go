package validation

var hazardReportSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"type", "description", "latitude", "longitude"},
	"properties": map[string]interface{}{
		"type": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"Flood", "Fallen Tree", "Fallen Powerline", "Fire"},
		},
		"description": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
			"pattern":   `\S`,
		},
		"latitude":  map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90},
		"longitude": map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180},
	},
	"additionalProperties": false,
}

var viewportSchema = map[string]interface{}{
	"type": []interface{}{"object", "null"},
	"required": []interface{}{
		"latitude", "longitude", "latitudeDelta", "longitudeDelta",
	},
	"properties": map[string]interface{}{
		"latitude":       map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90},
		"longitude":      map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180},
		"latitudeDelta":  map[string]interface{}{"type": "number", "minimum": 0},
		"longitudeDelta": map[string]interface{}{"type": "number", "minimum": 0},
	},
}

var timestampSchema = map[string]interface{}{
	"type":   []interface{}{"string", "null"},
	"format": "date-time",
}

var sessionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"type"},
	"properties": map[string]interface{}{
		"type": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"authenticated", "unauthenticated"},
		},
		"uid":             map[string]interface{}{"type": "string"},
		"accountType":     map[string]interface{}{"type": []interface{}{"integer", "null"}, "minimum": 1, "maximum": 4},
		"active":          map[string]interface{}{"type": []interface{}{"integer", "null"}, "minimum": 0, "maximum": 3},
		"currentLocation": viewportSchema,
		"searchLocation":  viewportSchema,
		"locationPermission": map[string]interface{}{
			"type": []interface{}{"object", "null"},
			"properties": map[string]interface{}{
				"status":   map[string]interface{}{"type": "string", "enum": []interface{}{"granted", "denied", "undetermined"}},
				"granted":  map[string]interface{}{"type": "boolean"},
				"timedOut": map[string]interface{}{"type": "boolean"},
			},
		},
		"sessionStartTime": timestampSchema,
		"expiry":           timestampSchema,
	},
}
