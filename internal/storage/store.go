// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/tabsplit/tabsplit/internal/models"
)

// Store defines the interface for group/receipt storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Every mutation commits atomically and bumps updated_at along the ownership
// chain (entry -> receipt -> group) before it returns, so a group's version
// always reflects the latest change anywhere beneath it.
type Store interface {
	// CreateGroup persists a new group with an optional initial people list.
	// ID, slug and timestamps are assigned by the store.
	CreateGroup(ctx context.Context, name string, people []string) (*models.Group, error)

	// GetGroup retrieves a group with its people by internal ID.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetGroupBySlug retrieves a group with its people by public slug.
	GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error)

	// ListGroups retrieves all groups with their people.
	ListGroups(ctx context.Context) ([]models.Group, error)

	// UpdateGroup applies a partial update (rename, people replacement by
	// name) in a single transaction. Replacing the people list creates
	// missing people and deletes the absent ones along with their roster
	// memberships and assignments.
	UpdateGroup(ctx context.Context, groupID string, in models.GroupUpdate) (*models.Group, error)

	// DeleteGroup removes a group and everything it owns.
	DeleteGroup(ctx context.Context, groupID string) error

	// GroupVersion returns the group's updated_at (unix nanoseconds).
	GroupVersion(ctx context.Context, groupID string) (int64, error)

	// CreateReceipt persists a receipt with its roster and entries under a
	// group. Names resolve with get-or-create semantics.
	CreateReceipt(ctx context.Context, groupID string, in models.ReceiptInput) (*models.Receipt, error)

	// GetReceipt retrieves a receipt with its roster and entries.
	GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error)

	// ListReceipts retrieves all of a group's receipts with rosters and
	// entries.
	ListReceipts(ctx context.Context, groupID string) ([]models.Receipt, error)

	// UpdateReceipt applies a partial update. Roster shrinkage prunes entry
	// assignments and the payer reference per the model invariants.
	UpdateReceipt(ctx context.Context, receiptID string, in models.ReceiptUpdate) (*models.Receipt, error)

	// DeleteReceipt removes a receipt and its entries.
	DeleteReceipt(ctx context.Context, receiptID string) error

	// AddEntry appends a line item to a receipt.
	AddEntry(ctx context.Context, receiptID string, in models.EntryInput) (*models.ReceiptEntry, error)

	// GetEntry retrieves a line item with its assignments.
	GetEntry(ctx context.Context, entryID string) (*models.ReceiptEntry, error)

	// UpdateEntry applies a partial update to a line item.
	UpdateEntry(ctx context.Context, entryID string, in models.EntryUpdate) (*models.ReceiptEntry, error)

	// DeleteEntry removes a line item.
	DeleteEntry(ctx context.Context, entryID string) error

	// Close releases any resources held by the store.
	Close() error
}
