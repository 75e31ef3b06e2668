// Package models defines the core domain models for Tabsplit.
//
// # Ownership
//
// The model forms a strict ownership tree:
//
//	Group -> Person   (a person belongs to exactly one group)
//	Group -> Receipt  (a receipt belongs to exactly one group)
//	Receipt -> ReceiptEntry
//
// Deleting a parent deletes all of its children. The only reference that
// survives as NULL rather than cascading is a receipt's payer: removing the
// paying person clears the reference instead of deleting the receipt.
//
// # Membership rules
//
// A person never moves between groups, and their name is unique within the
// group. A receipt's roster is a subset of the group's people, and an entry's
// assignment set is a subset of the receipt's roster. The storage layer keeps
// these subsets consistent on every mutation path.
//
// # Timestamps
//
// CreatedAt/UpdatedAt are unix nanoseconds. UpdatedAt strictly increases on
// every mutation, and mutations to an entry touch the owning receipt and group
// in the same transaction so that a group's UpdatedAt reflects any change
// anywhere beneath it. Polling clients use this for change detection.
package models
