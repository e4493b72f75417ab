package billing

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Amounts may arrive as JSON numbers or as strings with Persian digits, so
// the schemas only check shape; ParseAmount enforces the value.
var amountSchema = map[string]any{
	"type": []any{"number", "string"},
}

var (
	paymentRequestSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"amount"},
		"properties": map[string]any{
			"amount":      amountSchema,
			"merchant_id": map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string", "maxLength": 255},
			"confirmed":   map[string]any{"type": "boolean"},
		},
	})

	subscriptionRequestSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"plan"},
		"properties": map[string]any{
			"plan":       map[string]any{"type": "string", "minLength": 1},
			"auto_renew": map[string]any{"type": "boolean"},
			"starts_at":  map[string]any{"type": "string", "format": "date-time"},
			"renewal_of": map[string]any{"type": "string"},
			"confirmed":  map[string]any{"type": "boolean"},
		},
	})

	transferRequestSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"amount", "recipient_id"},
		"properties": map[string]any{
			"amount":       amountSchema,
			"recipient_id": map[string]any{"type": "string", "minLength": 1},
			"description":  map[string]any{"type": "string", "maxLength": 255},
			"confirmed":    map[string]any{"type": "boolean"},
		},
	})

	withdrawalRequestSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"amount", "iban"},
		"properties": map[string]any{
			"amount":    amountSchema,
			"iban":      map[string]any{"type": "string", "pattern": "^IR[0-9]{24}$"},
			"confirmed": map[string]any{"type": "boolean"},
		},
	})

	voiceCommandSchema = gojsonschema.NewGoLoader(map[string]any{
		"type": "object",
		"anyOf": []any{
			map[string]any{"required": []any{"audio"}},
			map[string]any{"required": []any{"audio_url"}},
		},
		"properties": map[string]any{
			"audio":     map[string]any{"type": "string", "minLength": 1},
			"audio_url": map[string]any{"type": "string", "minLength": 1},
			"language":  map[string]any{"type": "string"},
			"confirmed": map[string]any{"type": "boolean"},
		},
	})
)

// validateInput checks data against schema, joining every violation into
// one ErrInvalidRequest.
func validateInput(schema gojsonschema.JSONLoader, data map[string]any) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(violations, "; "))
	}

	return nil
}
