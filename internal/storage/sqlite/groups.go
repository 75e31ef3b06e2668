package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tabsplit/tabsplit/internal/models"
)

// CreateGroup persists a new group and its initial people list.
func (s *SQLiteStore) CreateGroup(ctx context.Context, name string, people []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty: %w", models.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group := &models.Group{
		ID:        uuid.New().String(),
		Slug:      newSlug(),
		Name:      name,
		CreatedAt: nowNanos(),
	}
	group.UpdatedAt = group.CreatedAt

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, slug, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Slug, group.Name, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert group: %w", err)
	}

	group.People, err = getOrCreatePeople(ctx, tx, group.ID, people)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return group, nil
}

// GetGroup retrieves a group with its people by internal ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroupBy(ctx, s.db, "id", groupID)
}

// GetGroupBySlug retrieves a group with its people by public slug.
func (s *SQLiteStore) GetGroupBySlug(ctx context.Context, slug string) (*models.Group, error) {
	return getGroupBy(ctx, s.db, "slug", slug)
}

func getGroupBy(ctx context.Context, q querier, column, value string) (*models.Group, error) {
	group := &models.Group{}
	err := q.QueryRowContext(ctx,
		"SELECT id, slug, name, created_at, updated_at FROM groups WHERE "+column+" = ?",
		value,
	).Scan(&group.ID, &group.Slug, &group.Name, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", value, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group.People, err = loadGroupPeople(ctx, q, group.ID)
	if err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups retrieves all groups with their people.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, slug, name, created_at, updated_at FROM groups ORDER BY created_at",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Slug, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for i := range groups {
		groups[i].People, err = loadGroupPeople(ctx, s.db, groups[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// UpdateGroup applies a partial update in one transaction; a rename and a
// people replacement sent together either both commit or neither does.
// People no longer listed are deleted; the database cascades their roster
// memberships and assignments away, and any receipt they paid for drops its
// payer.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, groupID string, in models.GroupUpdate) (*models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getGroupBy(ctx, tx, "id", groupID); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("group name cannot be empty: %w", models.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE groups SET name = ? WHERE id = ?", name, groupID); err != nil {
			return nil, fmt.Errorf("failed to rename group: %w", err)
		}
	}

	if in.People != nil {
		keep, err := getOrCreatePeople(ctx, tx, groupID, *in.People)
		if err != nil {
			return nil, err
		}

		existing, err := loadGroupPeople(ctx, tx, groupID)
		if err != nil {
			return nil, err
		}
		keptIDs := make(map[string]bool, len(keep))
		for _, p := range keep {
			keptIDs[p.ID] = true
		}
		var removed []string
		for _, p := range existing {
			if !keptIDs[p.ID] {
				removed = append(removed, p.ID)
			}
		}
		if len(removed) > 0 {
			// The cascade silently rewrites entries and receipts that
			// reference these people; bump their updated_at while the links
			// still exist so the per-row version reflects the change.
			if err := touchReferencing(ctx, tx, groupID, removed); err != nil {
				return nil, err
			}
			for _, id := range removed {
				if _, err := tx.ExecContext(ctx, "DELETE FROM people WHERE id = ?", id); err != nil {
					return nil, fmt.Errorf("failed to delete person: %w", err)
				}
			}
		}
	}

	if err := touchGroup(ctx, tx, groupID); err != nil {
		return nil, err
	}

	group, err := getGroupBy(ctx, tx, "id", groupID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return group, nil
}

// touchReferencing bumps updated_at on every entry and receipt that still
// references one of the removed people, before the delete cascade erases the
// link.
func touchReferencing(ctx context.Context, q querier, groupID string, removed []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(removed)), ",")

	args := make([]any, 0, len(removed)+1)
	args = append(args, nowNanos())
	for _, id := range removed {
		args = append(args, id)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE entries SET updated_at = MAX(?, updated_at + 1)
		 WHERE id IN (SELECT entry_id FROM entry_people WHERE person_id IN (`+placeholders+`))`,
		args...,
	); err != nil {
		return fmt.Errorf("failed to touch entries: %w", err)
	}

	args = make([]any, 0, 2*len(removed)+2)
	args = append(args, nowNanos(), groupID)
	for _, id := range removed {
		args = append(args, id)
	}
	for _, id := range removed {
		args = append(args, id)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE receipts SET updated_at = MAX(?, updated_at + 1)
		 WHERE group_id = ?
		   AND (id IN (SELECT receipt_id FROM receipt_people WHERE person_id IN (`+placeholders+`))
		     OR paid_by IN (`+placeholders+`))`,
		args...,
	); err != nil {
		return fmt.Errorf("failed to touch receipts: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; people, receipts and entries cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return nil
}

// GroupVersion returns the group's updated_at timestamp for change polling.
func (s *SQLiteStore) GroupVersion(ctx context.Context, groupID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT updated_at FROM groups WHERE id = ?", groupID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get group version: %w", err)
	}
	return version, nil
}
