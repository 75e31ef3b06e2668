package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tabsplit/tabsplit/internal/models"
)

// AddEntry appends a line item to a receipt and touches the receipt and
// group timestamps in the same transaction.
func (s *SQLiteStore) AddEntry(ctx context.Context, receiptID string, in models.EntryInput) (*models.ReceiptEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	receipt, err := loadReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, receiptID, receipt.People, in)
	if err != nil {
		return nil, err
	}

	if err := touchReceipt(ctx, tx, receiptID); err != nil {
		return nil, err
	}
	if err := touchGroup(ctx, tx, receipt.GroupID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// GetEntry retrieves a line item with its assignments.
func (s *SQLiteStore) GetEntry(ctx context.Context, entryID string) (*models.ReceiptEntry, error) {
	return loadEntry(ctx, s.db, entryID)
}

// UpdateEntry applies a partial update to a line item.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, entryID string, in models.EntryUpdate) (*models.ReceiptEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var receiptID string
	err = tx.QueryRowContext(ctx, "SELECT receipt_id FROM entries WHERE id = ?", entryID).Scan(&receiptID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	receipt, err := loadReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("entry name cannot be empty: %w", models.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE entries SET name = ? WHERE id = ?", name, entryID); err != nil {
			return nil, fmt.Errorf("failed to update entry name: %w", err)
		}
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, fmt.Errorf("entry price %v is negative: %w", *in.Price, models.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE entries SET price = ? WHERE id = ?", *in.Price, entryID); err != nil {
			return nil, fmt.Errorf("failed to update entry price: %w", err)
		}
	}
	if in.Taxable != nil {
		if _, err := tx.ExecContext(ctx, "UPDATE entries SET taxable = ? WHERE id = ?", *in.Taxable, entryID); err != nil {
			return nil, fmt.Errorf("failed to update entry taxable flag: %w", err)
		}
	}
	if in.AssignedTo != nil {
		assignees, err := resolveRosterNames(receipt.People, *in.AssignedTo)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entry_people WHERE entry_id = ?", entryID); err != nil {
			return nil, fmt.Errorf("failed to clear assignments: %w", err)
		}
		for _, p := range assignees {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entry_people (entry_id, person_id) VALUES (?, ?)",
				entryID, p.ID,
			); err != nil {
				return nil, fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE entries SET updated_at = MAX(?, updated_at + 1) WHERE id = ?",
		nowNanos(), entryID,
	); err != nil {
		return nil, fmt.Errorf("failed to touch entry: %w", err)
	}
	if err := touchReceipt(ctx, tx, receiptID); err != nil {
		return nil, err
	}
	if err := touchGroup(ctx, tx, receipt.GroupID); err != nil {
		return nil, err
	}

	entry, err := loadEntry(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// DeleteEntry removes a line item and touches its parents.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, entryID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var receiptID, groupID string
	err = tx.QueryRowContext(ctx,
		`SELECT e.receipt_id, r.group_id FROM entries e
		 JOIN receipts r ON r.id = e.receipt_id
		 WHERE e.id = ?`,
		entryID,
	).Scan(&receiptID, &groupID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if err := touchReceipt(ctx, tx, receiptID); err != nil {
		return err
	}
	if err := touchGroup(ctx, tx, groupID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertEntry validates and inserts one line item with its assignments.
// Assignment names must resolve to roster members; assigning someone who
// isn't splitting the receipt is a caller error, not an implicit roster add.
func insertEntry(ctx context.Context, q querier, receiptID string, roster []models.Person, in models.EntryInput) (*models.ReceiptEntry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("entry name cannot be empty: %w", models.ErrValidation)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("entry price %v is negative: %w", in.Price, models.ErrValidation)
	}

	assignees, err := resolveRosterNames(roster, in.AssignedTo)
	if err != nil {
		return nil, err
	}

	entry := &models.ReceiptEntry{
		ID:        uuid.New().String(),
		ReceiptID: receiptID,
		Name:      name,
		Price:     in.Price,
		Taxable:   in.Taxable,
		CreatedAt: nowNanos(),
	}
	entry.UpdatedAt = entry.CreatedAt

	_, err = q.ExecContext(ctx,
		"INSERT INTO entries (id, receipt_id, name, price, taxable, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.ID, receiptID, entry.Name, entry.Price, entry.Taxable, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, p := range assignees {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO entry_people (entry_id, person_id) VALUES (?, ?)",
			entry.ID, p.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to insert assignment: %w", err)
		}
		entry.AssignedTo = append(entry.AssignedTo, p)
	}
	return entry, nil
}

// resolveRosterNames maps names to roster members, rejecting anyone outside
// the roster.
func resolveRosterNames(roster []models.Person, names []string) ([]models.Person, error) {
	byName := make(map[string]models.Person, len(roster))
	for _, p := range roster {
		byName[p.Name] = p
	}

	out := make([]models.Person, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%q is not on the receipt roster: %w", name, models.ErrValidation)
		}
		out = append(out, p)
	}
	return out, nil
}

// loadEntries returns a receipt's line items with their assignments.
func loadEntries(ctx context.Context, q querier, receiptID string) ([]models.ReceiptEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, receipt_id, name, price, taxable, created_at, updated_at FROM entries WHERE receipt_id = ? ORDER BY created_at",
		receiptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ReceiptEntry
	for rows.Next() {
		var e models.ReceiptEntry
		if err := rows.Scan(&e.ID, &e.ReceiptID, &e.Name, &e.Price, &e.Taxable, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	for i := range entries {
		entries[i].AssignedTo, err = loadAssignments(ctx, q, entries[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func loadEntry(ctx context.Context, q querier, entryID string) (*models.ReceiptEntry, error) {
	e := &models.ReceiptEntry{}
	err := q.QueryRowContext(ctx,
		"SELECT id, receipt_id, name, price, taxable, created_at, updated_at FROM entries WHERE id = ?",
		entryID,
	).Scan(&e.ID, &e.ReceiptID, &e.Name, &e.Price, &e.Taxable, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %s: %w", entryID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	e.AssignedTo, err = loadAssignments(ctx, q, entryID)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func loadAssignments(ctx context.Context, q querier, entryID string) ([]models.Person, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.id, p.group_id, p.name, p.created_at, p.updated_at
		 FROM people p
		 JOIN entry_people ep ON ep.person_id = p.id
		 WHERE ep.entry_id = ?
		 ORDER BY p.created_at, p.name`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return people, nil
}
