package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tabsplit/tabsplit/internal/allocator"
	"github.com/tabsplit/tabsplit/internal/models"
	"github.com/tabsplit/tabsplit/internal/notifier"
	"github.com/tabsplit/tabsplit/internal/scanner"
	"github.com/tabsplit/tabsplit/internal/storage"
)

// ErrScanningDisabled is returned when the scan endpoint is called without a
// configured Gemini API key.
var ErrScanningDisabled = errors.New("receipt scanning is not configured")

// ReceiptScanner extracts structured receipt data from an uploaded file.
// *scanner.Scanner is the production implementation; tests substitute fakes.
type ReceiptScanner interface {
	Scan(ctx context.Context, data []byte, mimeType string) (*scanner.Extraction, error)
}

// ReceiptService handles receipts, entries, splitting and scanning.
type ReceiptService struct {
	store    storage.Store
	notifier *notifier.Notifier
	scanner  ReceiptScanner // nil when scanning is disabled
	taxRate  decimal.Decimal
}

// NewReceiptService creates a receipt service. A nil scanner disables Scan.
func NewReceiptService(store storage.Store, n *notifier.Notifier, sc ReceiptScanner, taxRate decimal.Decimal) *ReceiptService {
	return &ReceiptService{store: store, notifier: n, scanner: sc, taxRate: taxRate}
}

// Create adds a receipt to a group.
func (s *ReceiptService) Create(ctx context.Context, groupID string, in models.ReceiptInput) (*models.Receipt, error) {
	receipt, err := s.store.CreateReceipt(ctx, groupID, in)
	if err != nil {
		return nil, err
	}
	slog.Info("receipt created", "receipt_id", receipt.ID, "group_id", groupID, "entries", len(receipt.Entries))
	s.notifier.Changed(groupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return receipt, nil
}

// Get retrieves a receipt with its roster and entries.
func (s *ReceiptService) Get(ctx context.Context, receiptID string) (*models.Receipt, error) {
	return s.store.GetReceipt(ctx, receiptID)
}

// List retrieves all of a group's receipts.
func (s *ReceiptService) List(ctx context.Context, groupID string) ([]models.Receipt, error) {
	return s.store.ListReceipts(ctx, groupID)
}

// Update applies a partial update to a receipt.
func (s *ReceiptService) Update(ctx context.Context, receiptID string, in models.ReceiptUpdate) (*models.Receipt, error) {
	receipt, err := s.store.UpdateReceipt(ctx, receiptID, in)
	if err != nil {
		return nil, err
	}
	s.notifier.Changed(receipt.GroupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return receipt, nil
}

// Delete removes a receipt and its entries.
func (s *ReceiptService) Delete(ctx context.Context, receiptID string) error {
	receipt, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReceipt(ctx, receiptID); err != nil {
		return err
	}
	slog.Info("receipt deleted", "receipt_id", receiptID, "group_id", receipt.GroupID)
	s.notifier.Changed(receipt.GroupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return nil
}

// AddEntry appends a line item to a receipt.
func (s *ReceiptService) AddEntry(ctx context.Context, receiptID string, in models.EntryInput) (*models.ReceiptEntry, error) {
	receipt, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	entry, err := s.store.AddEntry(ctx, receiptID, in)
	if err != nil {
		return nil, err
	}
	s.notifier.Changed(receipt.GroupID, notifier.Event{Type: notifier.EventEntryUpdated})
	return entry, nil
}

// UpdateEntry applies a partial update to a line item.
func (s *ReceiptService) UpdateEntry(ctx context.Context, entryID string, in models.EntryUpdate) (*models.ReceiptEntry, error) {
	entry, err := s.store.UpdateEntry(ctx, entryID, in)
	if err != nil {
		return nil, err
	}
	receipt, err := s.store.GetReceipt(ctx, entry.ReceiptID)
	if err != nil {
		return nil, err
	}
	s.notifier.Changed(receipt.GroupID, notifier.Event{Type: notifier.EventEntryUpdated})
	return entry, nil
}

// DeleteEntry removes a line item.
func (s *ReceiptService) DeleteEntry(ctx context.Context, entryID string) error {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	receipt, err := s.store.GetReceipt(ctx, entry.ReceiptID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	s.notifier.Changed(receipt.GroupID, notifier.Event{Type: notifier.EventEntryUpdated})
	return nil
}

// PersonShare is one roster member's computed share.
type PersonShare struct {
	Person models.Person
	Amount decimal.Decimal
}

// Split is the computed cost breakdown for one receipt. Shares follow the
// receipt's roster order.
type Split struct {
	Receipt *models.Receipt
	Total   decimal.Decimal
	Shares  []PersonShare
}

// ComputeSplit loads a receipt and allocates its cost across the roster using
// the configured tax rate. The result is computed on demand, never stored.
func (s *ReceiptService) ComputeSplit(ctx context.Context, receiptID string) (*Split, error) {
	receipt, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	roster := make([]string, len(receipt.People))
	for i, p := range receipt.People {
		roster[i] = p.ID
	}
	entries := make([]allocator.Entry, len(receipt.Entries))
	for i, e := range receipt.Entries {
		assigned := make([]string, len(e.AssignedTo))
		for j, p := range e.AssignedTo {
			assigned[j] = p.ID
		}
		entries[i] = allocator.Entry{
			Name:       e.Name,
			Price:      decimal.NewFromFloat(e.Price),
			Taxable:    e.Taxable,
			AssignedTo: assigned,
		}
	}

	result, err := allocator.Allocate(entries, roster, allocator.Config{TaxRate: s.taxRate})
	if err != nil {
		return nil, err
	}

	split := &Split{Receipt: receipt, Total: result.Total}
	for _, p := range receipt.People {
		split.Shares = append(split.Shares, PersonShare{Person: p, Amount: result.Shares[p.ID]})
	}
	return split, nil
}

// Scan runs OCR extraction on an uploaded receipt file and creates an
// unprocessed receipt from the result. The whole group becomes the roster so
// entries can be assigned immediately; the extraction JSON is kept as raw
// data for later review.
func (s *ReceiptService) Scan(ctx context.Context, groupID string, data []byte, mimeType string) (*models.Receipt, error) {
	if s.scanner == nil {
		return nil, ErrScanningDisabled
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ex, err := s.scanner.Scan(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	raw, err := json.Marshal(ex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction: %w", err)
	}

	in := models.ReceiptInput{
		Name:    scanner.ReceiptName(ex.MerchantName, ex.ReceiptDate),
		RawData: string(raw),
	}
	for _, p := range group.People {
		in.People = append(in.People, p.Name)
	}
	for _, item := range ex.Items {
		in.Entries = append(in.Entries, models.EntryInput{
			Name:    item.Name,
			Price:   item.Price,
			Taxable: item.Taxable,
		})
	}

	receipt, err := s.store.CreateReceipt(ctx, groupID, in)
	if err != nil {
		return nil, err
	}
	slog.Info("receipt scanned",
		"receipt_id", receipt.ID,
		"group_id", groupID,
		"merchant", ex.MerchantName,
		"items", len(ex.Items),
	)
	s.notifier.Changed(groupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return receipt, nil
}
