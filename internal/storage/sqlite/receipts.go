package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tabsplit/tabsplit/internal/models"
)

// CreateReceipt persists a receipt with its roster and entries under a group.
// Roster and payer names resolve with get-or-create semantics against the
// owning group; entry assignments must resolve to roster members.
func (s *SQLiteStore) CreateReceipt(ctx context.Context, groupID string, in models.ReceiptInput) (*models.Receipt, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("receipt name cannot be empty: %w", models.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getGroupBy(ctx, tx, "id", groupID); err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Name:      name,
		Processed: in.Processed,
		RawData:   in.RawData,
		CreatedAt: nowNanos(),
	}
	receipt.UpdatedAt = receipt.CreatedAt

	var paidBy sql.NullString
	if in.PaidBy != "" {
		payer, err := getOrCreatePerson(ctx, tx, groupID, strings.TrimSpace(in.PaidBy))
		if err != nil {
			return nil, err
		}
		paidBy = sql.NullString{String: payer.ID, Valid: true}
		receipt.PaidByID = payer.ID
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO receipts (id, group_id, name, processed, raw_data, paid_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		receipt.ID, groupID, receipt.Name, receipt.Processed, receipt.RawData, paidBy, receipt.CreatedAt, receipt.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert receipt: %w", err)
	}

	roster, err := getOrCreatePeople(ctx, tx, groupID, in.People)
	if err != nil {
		return nil, err
	}
	for _, p := range roster {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO receipt_people (receipt_id, person_id) VALUES (?, ?)",
			receipt.ID, p.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to insert roster member: %w", err)
		}
	}

	for _, entry := range in.Entries {
		if _, err := insertEntry(ctx, tx, receipt.ID, roster, entry); err != nil {
			return nil, err
		}
	}

	if err := touchGroup(ctx, tx, groupID); err != nil {
		return nil, err
	}

	created, err := loadReceipt(ctx, tx, receipt.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// GetReceipt retrieves a receipt with its roster and entries.
func (s *SQLiteStore) GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	return loadReceipt(ctx, s.db, receiptID)
}

// ListReceipts retrieves all of a group's receipts, oldest first.
func (s *SQLiteStore) ListReceipts(ctx context.Context, groupID string) ([]models.Receipt, error) {
	if _, err := getGroupBy(ctx, s.db, "id", groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM receipts WHERE group_id = ? ORDER BY created_at", groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan receipt id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}

	receipts := make([]models.Receipt, 0, len(ids))
	for _, id := range ids {
		r, err := loadReceipt(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *r)
	}
	return receipts, nil
}

// UpdateReceipt applies a partial update. Replacing the roster prunes removed
// people from every entry's assignment set and clears the payer if they were
// removed; nobody outside the roster may stay referenced.
func (s *SQLiteStore) UpdateReceipt(ctx context.Context, receiptID string, in models.ReceiptUpdate) (*models.Receipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := loadReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("receipt name cannot be empty: %w", models.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE receipts SET name = ? WHERE id = ?", name, receiptID); err != nil {
			return nil, fmt.Errorf("failed to update receipt name: %w", err)
		}
	}
	if in.Processed != nil {
		if _, err := tx.ExecContext(ctx, "UPDATE receipts SET processed = ? WHERE id = ?", *in.Processed, receiptID); err != nil {
			return nil, fmt.Errorf("failed to update receipt processed flag: %w", err)
		}
	}

	if in.People != nil {
		roster, err := getOrCreatePeople(ctx, tx, current.GroupID, *in.People)
		if err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM receipt_people WHERE receipt_id = ?", receiptID); err != nil {
			return nil, fmt.Errorf("failed to clear roster: %w", err)
		}
		rosterIDs := make(map[string]bool, len(roster))
		for _, p := range roster {
			rosterIDs[p.ID] = true
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO receipt_people (receipt_id, person_id) VALUES (?, ?)",
				receiptID, p.ID,
			); err != nil {
				return nil, fmt.Errorf("failed to insert roster member: %w", err)
			}
		}

		// Prune assignments that now point outside the roster.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entry_people
			 WHERE entry_id IN (SELECT id FROM entries WHERE receipt_id = ?)
			   AND person_id NOT IN (SELECT person_id FROM receipt_people WHERE receipt_id = ?)`,
			receiptID, receiptID,
		); err != nil {
			return nil, fmt.Errorf("failed to prune entry assignments: %w", err)
		}

		if current.PaidByID != "" && !rosterIDs[current.PaidByID] {
			if _, err := tx.ExecContext(ctx, "UPDATE receipts SET paid_by = NULL WHERE id = ?", receiptID); err != nil {
				return nil, fmt.Errorf("failed to clear payer: %w", err)
			}
		}
	}

	if in.PaidBy != nil {
		if *in.PaidBy == "" {
			if _, err := tx.ExecContext(ctx, "UPDATE receipts SET paid_by = NULL WHERE id = ?", receiptID); err != nil {
				return nil, fmt.Errorf("failed to clear payer: %w", err)
			}
		} else {
			payer, err := getOrCreatePerson(ctx, tx, current.GroupID, strings.TrimSpace(*in.PaidBy))
			if err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE receipts SET paid_by = ? WHERE id = ?", payer.ID, receiptID); err != nil {
				return nil, fmt.Errorf("failed to update payer: %w", err)
			}
		}
	}

	if err := touchReceipt(ctx, tx, receiptID); err != nil {
		return nil, err
	}
	if err := touchGroup(ctx, tx, current.GroupID); err != nil {
		return nil, err
	}

	updated, err := loadReceipt(ctx, tx, receiptID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// DeleteReceipt removes a receipt; entries and assignments cascade.
func (s *SQLiteStore) DeleteReceipt(ctx context.Context, receiptID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	err = tx.QueryRowContext(ctx, "SELECT group_id FROM receipts WHERE id = ?", receiptID).Scan(&groupID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("receipt %s: %w", receiptID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get receipt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", receiptID); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	if err := touchGroup(ctx, tx, groupID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// loadReceipt assembles a receipt with its roster and entries.
func loadReceipt(ctx context.Context, q querier, receiptID string) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var paidBy sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT id, group_id, name, processed, raw_data, paid_by, created_at, updated_at FROM receipts WHERE id = ?",
		receiptID,
	).Scan(&receipt.ID, &receipt.GroupID, &receipt.Name, &receipt.Processed, &receipt.RawData, &paidBy, &receipt.CreatedAt, &receipt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	if paidBy.Valid {
		receipt.PaidByID = paidBy.String
	}

	receipt.People, err = loadReceiptRoster(ctx, q, receiptID)
	if err != nil {
		return nil, err
	}
	receipt.Entries, err = loadEntries(ctx, q, receiptID)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func loadReceiptRoster(ctx context.Context, q querier, receiptID string) ([]models.Person, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.id, p.group_id, p.name, p.created_at, p.updated_at
		 FROM people p
		 JOIN receipt_people rp ON rp.person_id = p.id
		 WHERE rp.receipt_id = ?
		 ORDER BY p.created_at, p.name`,
		receiptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan roster member: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster: %w", err)
	}
	return people, nil
}
