package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// BuildFieldsJSONSchema returns a JSON-Schema (draft 2020-12 subset) for
// the typed payload of the given document type, as a generic map.
func BuildFieldsJSONSchema(docType constants.DocumentType) map[string]any {
	switch docType {
	case constants.Receipt:
		return objectSchema(map[string]any{
			"vendor":         map[string]any{"type": "string", "minLength": 1},
			"total":          amountProp(),
			"subtotal":       amountProp(),
			"tax_amount":     amountProp(),
			"date":           map[string]any{"type": "string"},
			"payment_method": map[string]any{"type": "string"},
			"receipt_number": map[string]any{"type": "string"},
			"location":       map[string]any{"type": "string"},
			"items":          itemsProp(),
		}, []string{"vendor", "total"})
	case constants.Invoice:
		return objectSchema(map[string]any{
			"vendor":         map[string]any{"type": "string", "minLength": 1},
			"invoice_number": map[string]any{"type": "string"},
			"total":          amountProp(),
			"issue_date":     map[string]any{"type": "string"},
			"due_date":       map[string]any{"type": "string"},
			"customer_email": map[string]any{"type": "string"},
			"payment_terms":  map[string]any{"type": "string"},
			"items":          itemsProp(),
		}, []string{"vendor", "total"})
	case constants.Contract:
		return objectSchema(map[string]any{
			"parties":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"effective_date": map[string]any{"type": "string"},
			"value":          amountProp(),
			"payment_terms":  map[string]any{"type": "string"},
			"key_clauses":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, nil)
	case constants.Statement:
		return objectSchema(map[string]any{
			"institution":     map[string]any{"type": "string"},
			"account_number":  map[string]any{"type": "string"},
			"period_start":    map[string]any{"type": "string"},
			"period_end":      map[string]any{"type": "string"},
			"opening_balance": amountProp(),
			"closing_balance": amountProp(),
			"transactions":    transactionsProp(),
		}, nil)
	default:
		return objectSchema(map[string]any{}, nil)
	}
}

func objectSchema(props map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func amountProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0}
}

func itemsProp() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{"type": "string", "minLength": 1},
				"quantity":    map[string]any{"type": "integer", "minimum": 1},
				"unit_price":  amountProp(),
				"total":       amountProp(),
			},
			"required": []string{"description", "quantity"},
		},
	}
}

func transactionsProp() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date":        map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"amount":      amountProp(),
				"type":        map[string]any{"enum": []any{"debit", "credit"}},
			},
			"required": []string{"date", "amount"},
		},
	}
}

// ValidateExtracted checks the typed payload against its schema. A schema
// violation means an extractor bug, not bad input.
func ValidateExtracted(f entity.ExtractedFields, docType constants.DocumentType) error {
	var payload any
	switch docType {
	case constants.Receipt:
		payload = f.Receipt
	case constants.Invoice:
		payload = f.Invoice
	case constants.Contract:
		payload = f.Contract
	case constants.Statement:
		payload = f.Statement
	default:
		return nil
	}
	if payload == nil {
		return fmt.Errorf("no %s payload to validate", docType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return validateJSON(BuildFieldsJSONSchema(docType), data)
}

func validateJSON(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}
