// Package scanner extracts structured receipt data from images and PDFs
// using Gemini.
//
// The model is treated as a black box that returns JSON; everything the
// application trusts is checked locally, first against a JSON schema and then
// against the acceptance policy (merchant present, items present, no
// negative prices, confidence not "low").
package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tabsplit/tabsplit/internal/models"
)

// ModelName is the Gemini model used for extraction.
const ModelName = "gemini-2.5-flash"

const extractionPrompt = `You are a receipt OCR specialist. Extract structured data from this receipt image.

Return ONLY valid JSON with this exact structure (no markdown, no explanations):
{
  "merchant_name": "store or restaurant name",
  "receipt_date": "YYYY-MM-DD format or null if not found",
  "items": [
    {"name": "item description", "price": item price number, "taxable": true or false}
  ],
  "confidence": "high"
}

Instructions:
- Extract ALL line items from the receipt
- Set taxable individually based on if the item should be taxed
- Use null for receipt_date if the date is unclear or not visible
- Set confidence to "low" if: this is not a receipt, the image is too blurry to read, or critical data is missing

Return the JSON now:`

// supported MIME types for uploads.
var supportedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Item is one extracted line item.
type Item struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Taxable bool    `json:"taxable"`
}

// Extraction is the validated result of scanning one receipt.
type Extraction struct {
	MerchantName string `json:"merchant_name"`
	ReceiptDate  string `json:"receipt_date,omitempty"` // YYYY-MM-DD, empty if unknown
	Items        []Item `json:"items"`
	Confidence   string `json:"confidence"`
}

// Scanner calls Gemini to read receipts.
type Scanner struct {
	client *genai.Client
	model  string
}

// New creates a Scanner. The API key comes from configuration; an empty key
// disables scanning (New fails, the caller runs without the endpoint).
func New(ctx context.Context, apiKey string) (*Scanner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not set: %w", models.ErrValidation)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Scanner{client: client, model: ModelName}, nil
}

// Scan sends the file to Gemini and returns the validated extraction.
func (s *Scanner) Scan(ctx context.Context, data []byte, mimeType string) (*Extraction, error) {
	if !supportedMIMETypes[mimeType] {
		return nil, fmt.Errorf("unsupported file type %q: %w", mimeType, models.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %w", models.ErrValidation)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: extractionPrompt},
			{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
		},
	}}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	return ParseExtraction(text)
}

// ReceiptName builds a display name like "Whole Foods - Jan 13, 2026" from
// an extraction; the merchant alone when the date is missing or unparsable.
func ReceiptName(merchant, receiptDate string) string {
	merchant = strings.TrimSpace(merchant)
	if receiptDate == "" {
		return merchant
	}
	d, err := time.Parse("2006-01-02", receiptDate)
	if err != nil {
		return merchant
	}
	return fmt.Sprintf("%s - %s", merchant, d.Format("Jan 2, 2006"))
}

// stripFences removes a surrounding markdown code block, which the model
// sometimes adds despite the prompt.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
