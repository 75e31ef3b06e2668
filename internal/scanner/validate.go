package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tabsplit/tabsplit/internal/models"
)

// extractionSchema is the structural contract for the model's JSON reply
// (draft 2020-12 subset as a generic map). Policy rules that a schema can't
// express (confidence thresholds, taxable defaulting) live in
// validateExtraction.
func extractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"merchant_name": map[string]any{"type": "string"},
			"receipt_date":  map[string]any{"type": []string{"string", "null"}},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":    map[string]any{"type": "string"},
						"price":   map[string]any{"type": "number"},
						"taxable": map[string]any{"type": "boolean"},
					},
					"required": []string{"name", "price"},
				},
			},
			"confidence": map[string]any{"type": "string"},
		},
		"required": []string{"merchant_name", "items"},
	}
}

// validateJSONAgainstSchema validates data against the generic schema map.
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// rawExtraction mirrors the wire shape; Taxable is a pointer so an omitted
// flag can default to true instead of false.
type rawExtraction struct {
	MerchantName string    `json:"merchant_name"`
	ReceiptDate  *string   `json:"receipt_date"`
	Items        []rawItem `json:"items"`
	Confidence   string    `json:"confidence"`
}

type rawItem struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Taxable *bool   `json:"taxable"`
}

// ParseExtraction turns the model's reply into a validated Extraction.
// Rejections surface as models.ErrValidation so the API maps them to 422.
func ParseExtraction(text string) (*Extraction, error) {
	payload := []byte(stripFences(text))

	if err := validateJSONAgainstSchema(extractionSchema(), payload); err != nil {
		return nil, fmt.Errorf("unexpected extraction shape: %v: %w", err, models.ErrValidation)
	}

	var raw rawExtraction
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %v: %w", err, models.ErrValidation)
	}

	ex, err := validateExtraction(raw)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// validateExtraction applies the acceptance policy from rawExtraction.
func validateExtraction(raw rawExtraction) (*Extraction, error) {
	if strings.TrimSpace(raw.MerchantName) == "" {
		return nil, fmt.Errorf("could not determine merchant name: %w", models.ErrValidation)
	}
	if len(raw.Items) == 0 {
		return nil, fmt.Errorf("no items detected on receipt: %w", models.ErrValidation)
	}
	if strings.EqualFold(raw.Confidence, "low") {
		return nil, fmt.Errorf("receipt image quality too low or not a valid receipt: %w", models.ErrValidation)
	}

	ex := &Extraction{
		MerchantName: strings.TrimSpace(raw.MerchantName),
		Confidence:   raw.Confidence,
		Items:        make([]Item, 0, len(raw.Items)),
	}
	if raw.ReceiptDate != nil {
		ex.ReceiptDate = strings.TrimSpace(*raw.ReceiptDate)
	}

	for i, item := range raw.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("item %d missing name: %w", i+1, models.ErrValidation)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("item %d has negative price: %w", i+1, models.ErrValidation)
		}
		taxable := true
		if item.Taxable != nil {
			taxable = *item.Taxable
		}
		ex.Items = append(ex.Items, Item{
			Name:    strings.TrimSpace(item.Name),
			Price:   item.Price,
			Taxable: taxable,
		})
	}
	return ex, nil
}
