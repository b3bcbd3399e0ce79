package schema

// RequestBody is the shape schema for create/edit request payloads. Field
// semantics (phone shape, rate floor, date rules) are enforced separately
// by the validator; this only rejects structurally malformed bodies early.
var RequestBody = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"technicianTitle":      map[string]interface{}{"type": "string"},
		"serviceId":            map[string]interface{}{"type": "string"},
		"location":             map[string]interface{}{"type": "string"},
		"contactNo":            map[string]interface{}{"type": "string"},
		"description":          map[string]interface{}{"type": "string"},
		"specialTools":         map[string]interface{}{"type": "string"},
		"pickupLocation":       map[string]interface{}{"type": "string"},
		"deliveryInstructions": map[string]interface{}{"type": "string"},
		"startDate":            map[string]interface{}{"type": "string"},
		"startTime":            map[string]interface{}{"type": "string"},
		"endDate":              map[string]interface{}{"type": "string"},
		"payType":              map[string]interface{}{"type": "string"},
		"rate":                 map[string]interface{}{"type": "string"},
		"images": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ref":     map[string]interface{}{"type": "string"},
					"caption": map[string]interface{}{"type": "string"},
				},
				"required": []string{"ref"},
			},
		},
	},
	"additionalProperties": false,
}
