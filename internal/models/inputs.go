package models

// ReceiptInput describes a receipt to create. People are referenced by name
// and resolved against the owning group with get-or-create semantics, so a
// client can type a new name and have the person exist from then on.
type ReceiptInput struct {
	Name      string
	Processed bool
	RawData   string
	PaidBy    string   // payer name, empty for unknown
	People    []string // roster names
	Entries   []EntryInput
}

// EntryInput describes a line item to create.
type EntryInput struct {
	Name       string
	Price      float64
	Taxable    bool
	AssignedTo []string // names, must resolve to roster members
}

// GroupUpdate is a partial update; nil fields are left untouched. Both fields
// apply in one transaction: a rename never survives a rejected people list.
// Setting People replaces the membership by name; people absent from the list
// are deleted along with their roster memberships and assignments.
type GroupUpdate struct {
	Name   *string
	People *[]string
}

// ReceiptUpdate is a partial update; nil fields are left untouched.
// Setting People shrinks or grows the roster; people removed from the roster
// are pruned from every entry's assignment set and cleared as payer.
type ReceiptUpdate struct {
	Name      *string
	Processed *bool
	PaidBy    *string // name; empty string clears the payer
	People    *[]string
}

// EntryUpdate is a partial update; nil fields are left untouched.
type EntryUpdate struct {
	Name       *string
	Price      *float64
	Taxable    *bool
	AssignedTo *[]string
}
