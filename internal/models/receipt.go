package models

// Receipt is one purchase event within a group.
type Receipt struct {
	// ID is the unique identifier for the receipt (UUID format).
	ID string

	// GroupID is the owning group.
	GroupID string

	// Name is the display name, typically "Merchant - Jan 13, 2026" when the
	// receipt came from the scanner.
	Name string

	// Processed marks whether the receipt has been reviewed. Scanned receipts
	// start unprocessed so someone can check the extraction before splitting.
	Processed bool

	// RawData optionally holds the raw source text the receipt was built
	// from (scanner summary, pasted text).
	RawData string

	// PaidByID is the person who paid, or empty if unknown. If the payer is
	// removed from the roster the reference is cleared, never left dangling.
	PaidByID string

	// People is the roster: the subset of the group's people splitting this
	// receipt. Entries can only be assigned to roster members.
	People []Person

	// Entries are the line items on the receipt.
	Entries []ReceiptEntry

	// CreatedAt is the unix-nanosecond creation timestamp.
	CreatedAt int64

	// UpdatedAt strictly increases on any mutation to the receipt or its
	// entries.
	UpdatedAt int64
}

// ReceiptEntry is a single line item on a receipt.
type ReceiptEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// ReceiptID is the owning receipt.
	ReceiptID string

	// Name is the item description (e.g., "Sourdough Bread").
	Name string

	// Price is the pre-tax price. Never negative.
	Price float64

	// Taxable controls whether the configured tax rate applies when
	// splitting. Defaults to true.
	Taxable bool

	// AssignedTo are the roster members sharing this item. An empty set
	// means the whole roster shares it.
	AssignedTo []Person

	// CreatedAt is the unix-nanosecond creation timestamp.
	CreatedAt int64

	// UpdatedAt is the unix-nanosecond timestamp of the last mutation.
	UpdatedAt int64
}
