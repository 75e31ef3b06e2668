// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tabsplit/tabsplit/internal/models"
	"github.com/tabsplit/tabsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys; cascade and SET NULL behavior depends on it.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers work
// inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nowNanos is the mutation clock. Unix nanoseconds leave enough resolution
// that consecutive mutations land on different values on their own; touch
// statements still force strict growth as a backstop.
func nowNanos() int64 {
	return time.Now().UnixNano()
}

// newSlug returns a 22-char base64url public identifier derived from fresh
// UUID bytes.
func newSlug() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// touchGroup bumps the group's updated_at to max(now, prev+1) so the version
// observed by pollers strictly increases on every mutation.
func touchGroup(ctx context.Context, q querier, groupID string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE groups SET updated_at = MAX(?, updated_at + 1) WHERE id = ?",
		nowNanos(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return nil
}

func touchReceipt(ctx context.Context, q querier, receiptID string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE receipts SET updated_at = MAX(?, updated_at + 1) WHERE id = ?",
		nowNanos(), receiptID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to touch receipt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("receipt %s: %w", receiptID, models.ErrNotFound)
	}
	return nil
}

// getOrCreatePeople resolves names to people inside a group, creating any
// that don't exist yet. Order of the input names is preserved.
func getOrCreatePeople(ctx context.Context, q querier, groupID string, names []string) ([]models.Person, error) {
	people := make([]models.Person, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("person name cannot be empty: %w", models.ErrValidation)
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		person, err := getOrCreatePerson(ctx, q, groupID, name)
		if err != nil {
			return nil, err
		}
		people = append(people, *person)
	}
	return people, nil
}

func getOrCreatePerson(ctx context.Context, q querier, groupID, name string) (*models.Person, error) {
	person := &models.Person{GroupID: groupID, Name: name}
	err := q.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM people WHERE group_id = ? AND name = ?",
		groupID, name,
	).Scan(&person.ID, &person.CreatedAt, &person.UpdatedAt)
	if err == nil {
		return person, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}

	person.ID = uuid.New().String()
	person.CreatedAt = nowNanos()
	person.UpdatedAt = person.CreatedAt
	_, err = q.ExecContext(ctx,
		"INSERT INTO people (id, group_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		person.ID, groupID, name, person.CreatedAt, person.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("person %q already exists in group: %w", name, models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert person: %w", err)
	}
	return person, nil
}

// loadGroupPeople returns a group's people ordered by creation.
func loadGroupPeople(ctx context.Context, q querier, groupID string) ([]models.Person, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, group_id, name, created_at, updated_at FROM people WHERE group_id = ? ORDER BY created_at, name",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate people: %w", err)
	}
	return people, nil
}
