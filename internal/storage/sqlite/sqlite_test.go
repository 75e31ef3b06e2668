package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tabsplit/tabsplit/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tabsplit-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func personNames(people []models.Person) []string {
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.Name
	}
	return names
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroup assigns id, slug and people", func(t *testing.T) {
		group, err := store.CreateGroup(ctx, "Roommates", []string{"Alice", "Bob", "Charlie"})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if group.ID == "" {
			t.Error("expected group ID to be generated")
		}
		if len(group.Slug) != 22 {
			t.Errorf("slug length = %d, want 22 (%q)", len(group.Slug), group.Slug)
		}
		if len(group.People) != 3 {
			t.Fatalf("expected 3 people, got %d", len(group.People))
		}
		for _, p := range group.People {
			if p.GroupID != group.ID {
				t.Errorf("person %s owned by %s, want %s", p.Name, p.GroupID, group.ID)
			}
		}
		if group.UpdatedAt == 0 || group.CreatedAt == 0 {
			t.Error("expected timestamps to be set")
		}

		bySlug, err := store.GetGroupBySlug(ctx, group.Slug)
		if err != nil {
			t.Fatalf("GetGroupBySlug failed: %v", err)
		}
		if bySlug.ID != group.ID {
			t.Errorf("slug lookup returned %s, want %s", bySlug.ID, group.ID)
		}
	})

	t.Run("empty group name is rejected", func(t *testing.T) {
		if _, err := store.CreateGroup(ctx, "  ", nil); !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("GetGroup on unknown id", func(t *testing.T) {
		if _, err := store.GetGroup(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateGroup creates and deletes people by name", func(t *testing.T) {
		group, err := store.CreateGroup(ctx, "Trip", []string{"Dana", "Eli"})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		people := []string{"Dana", "Frida"}
		updated, err := store.UpdateGroup(ctx, group.ID, models.GroupUpdate{People: &people})
		if err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}
		got := personNames(updated.People)
		if len(got) != 2 || got[0] != "Dana" || got[1] != "Frida" {
			t.Errorf("people = %v, want [Dana Frida]", got)
		}
		if updated.UpdatedAt <= group.UpdatedAt {
			t.Error("expected updated_at to increase")
		}
	})

	t.Run("UpdateGroup renames", func(t *testing.T) {
		group, err := store.CreateGroup(ctx, "Old Name", nil)
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		name := "New Name"
		renamed, err := store.UpdateGroup(ctx, group.ID, models.GroupUpdate{Name: &name})
		if err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}
		if renamed.Name != "New Name" {
			t.Errorf("name = %q, want %q", renamed.Name, "New Name")
		}
	})

	t.Run("rename and people change commit together or not at all", func(t *testing.T) {
		group, err := store.CreateGroup(ctx, "Brunch Club", []string{"Gus"})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		name := "Renamed"
		people := []string{"Gus", "  "}
		if _, err := store.UpdateGroup(ctx, group.ID, models.GroupUpdate{Name: &name, People: &people}); !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}

		after, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if after.Name != "Brunch Club" {
			t.Errorf("rename leaked from rolled-back update: name = %q", after.Name)
		}
		if after.UpdatedAt != group.UpdatedAt {
			t.Errorf("version moved on a rolled-back update: %d -> %d", group.UpdatedAt, after.UpdatedAt)
		}
	})

	t.Run("removing a person touches referencing receipts and entries", func(t *testing.T) {
		group, err := store.CreateGroup(ctx, "Ski House", []string{"Hana", "Ivo"})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Lift Tickets",
			PaidBy: "Ivo",
			People: []string{"Hana", "Ivo"},
			Entries: []models.EntryInput{
				{Name: "Day Pass", Price: 89.00, AssignedTo: []string{"Ivo"}},
			},
		})
		if err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}

		people := []string{"Hana"}
		if _, err := store.UpdateGroup(ctx, group.ID, models.GroupUpdate{People: &people}); err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}

		after, err := store.GetReceipt(ctx, receipt.ID)
		if err != nil {
			t.Fatalf("GetReceipt failed: %v", err)
		}
		if after.UpdatedAt <= receipt.UpdatedAt {
			t.Error("expected receipt updated_at to increase when the cascade rewrote it")
		}
		if after.PaidByID != "" {
			t.Errorf("expected payer cleared, got %s", after.PaidByID)
		}
		if after.Entries[0].UpdatedAt <= receipt.Entries[0].UpdatedAt {
			t.Error("expected entry updated_at to increase when its assignment was pruned")
		}
		if len(after.Entries[0].AssignedTo) != 0 {
			t.Errorf("expected assignment pruned, got %v", personNames(after.Entries[0].AssignedTo))
		}
	})
}

func TestReceipts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, err := store.CreateGroup(ctx, "Household", []string{"Alice", "Bob", "Charlie"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("CreateReceipt with roster, payer and entries", func(t *testing.T) {
		receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Whole Foods Market",
			PaidBy: "Alice",
			People: []string{"Alice", "Bob", "Charlie"},
			Entries: []models.EntryInput{
				{Name: "Organic Apples", Price: 5.99, Taxable: true, AssignedTo: []string{"Bob", "Charlie"}},
				{Name: "Sourdough Bread", Price: 4.99},
			},
		})
		if err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		if receipt.PaidByID == "" {
			t.Error("expected payer to be resolved")
		}
		if len(receipt.People) != 3 {
			t.Errorf("roster size = %d, want 3", len(receipt.People))
		}
		if len(receipt.Entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(receipt.Entries))
		}
		if got := personNames(receipt.Entries[0].AssignedTo); len(got) != 2 {
			t.Errorf("first entry assigned to %v, want 2 people", got)
		}
	})

	t.Run("assignment outside the roster is rejected", func(t *testing.T) {
		_, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Bad Receipt",
			People: []string{"Alice"},
			Entries: []models.EntryInput{
				{Name: "Latte", Price: 5.45, AssignedTo: []string{"Bob"}},
			},
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		_, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Refunds",
			People: []string{"Alice"},
			Entries: []models.EntryInput{
				{Name: "Return", Price: -3.00},
			},
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("roster removal prunes assignments and clears payer", func(t *testing.T) {
		receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Pizza Palace",
			PaidBy: "Bob",
			People: []string{"Alice", "Bob", "Charlie"},
			Entries: []models.EntryInput{
				{Name: "Large Pepperoni Pizza", Price: 18.99, Taxable: true, AssignedTo: []string{"Bob", "Charlie"}},
			},
		})
		if err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}

		people := []string{"Alice", "Charlie"}
		updated, err := store.UpdateReceipt(ctx, receipt.ID, models.ReceiptUpdate{People: &people})
		if err != nil {
			t.Fatalf("UpdateReceipt failed: %v", err)
		}

		if got := personNames(updated.People); len(got) != 2 {
			t.Fatalf("roster = %v, want [Alice Charlie]", got)
		}
		if got := personNames(updated.Entries[0].AssignedTo); len(got) != 1 || got[0] != "Charlie" {
			t.Errorf("entry assigned to %v, want [Charlie]", got)
		}
		if updated.PaidByID != "" {
			t.Errorf("expected payer cleared after leaving roster, got %s", updated.PaidByID)
		}
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
			Name:   "Starbucks Coffee",
			People: []string{"Alice", "Bob"},
		})
		if err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}

		processed := true
		updated, err := store.UpdateReceipt(ctx, receipt.ID, models.ReceiptUpdate{Processed: &processed})
		if err != nil {
			t.Fatalf("UpdateReceipt failed: %v", err)
		}
		if !updated.Processed {
			t.Error("expected processed flag set")
		}
		if updated.Name != "Starbucks Coffee" || len(updated.People) != 2 {
			t.Errorf("unexpected side effects: %+v", updated)
		}
	})

	t.Run("DeleteGroup cascades to receipts", func(t *testing.T) {
		doomed, err := store.CreateGroup(ctx, "Doomed", []string{"Zoe"})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		receipt, err := store.CreateReceipt(ctx, doomed.ID, models.ReceiptInput{
			Name:   "Last Supper",
			People: []string{"Zoe"},
			Entries: []models.EntryInput{
				{Name: "Bread", Price: 2.00},
			},
		})
		if err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}

		if err := store.DeleteGroup(ctx, doomed.ID); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetReceipt(ctx, receipt.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected cascaded receipt to be gone, got %v", err)
		}
	})
}

func TestEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, err := store.CreateGroup(ctx, "Flat", []string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
		Name:   "Groceries",
		People: []string{"Alice", "Bob"},
	})
	if err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}

	t.Run("AddEntry and UpdateEntry assignment", func(t *testing.T) {
		entry, err := store.AddEntry(ctx, receipt.ID, models.EntryInput{
			Name: "Almond Milk", Price: 4.25, Taxable: true,
		})
		if err != nil {
			t.Fatalf("AddEntry failed: %v", err)
		}

		assigned := []string{"Bob"}
		updated, err := store.UpdateEntry(ctx, entry.ID, models.EntryUpdate{AssignedTo: &assigned})
		if err != nil {
			t.Fatalf("UpdateEntry failed: %v", err)
		}
		if got := personNames(updated.AssignedTo); len(got) != 1 || got[0] != "Bob" {
			t.Errorf("assigned = %v, want [Bob]", got)
		}
	})

	t.Run("entry mutation touches receipt and group", func(t *testing.T) {
		before, err := store.GetReceipt(ctx, receipt.ID)
		if err != nil {
			t.Fatalf("GetReceipt failed: %v", err)
		}
		groupBefore, err := store.GroupVersion(ctx, group.ID)
		if err != nil {
			t.Fatalf("GroupVersion failed: %v", err)
		}

		price := 3.10
		if _, err := store.UpdateEntry(ctx, before.Entries[0].ID, models.EntryUpdate{Price: &price}); err != nil {
			t.Fatalf("UpdateEntry failed: %v", err)
		}

		after, err := store.GetReceipt(ctx, receipt.ID)
		if err != nil {
			t.Fatalf("GetReceipt failed: %v", err)
		}
		if after.UpdatedAt <= before.UpdatedAt {
			t.Error("expected receipt updated_at to increase")
		}
		groupAfter, err := store.GroupVersion(ctx, group.ID)
		if err != nil {
			t.Fatalf("GroupVersion failed: %v", err)
		}
		if groupAfter <= groupBefore {
			t.Error("expected group version to increase")
		}
	})

	t.Run("DeleteEntry", func(t *testing.T) {
		entry, err := store.AddEntry(ctx, receipt.ID, models.EntryInput{Name: "Chips", Price: 2.50})
		if err != nil {
			t.Fatalf("AddEntry failed: %v", err)
		}
		if err := store.DeleteEntry(ctx, entry.ID); err != nil {
			t.Fatalf("DeleteEntry failed: %v", err)
		}
		if err := store.DeleteEntry(ctx, entry.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound on double delete, got %v", err)
		}
	})
}

// Every mutation anywhere under a group must strictly increase its version.
func TestGroupVersionMonotonicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, err := store.CreateGroup(ctx, "Versioned", []string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	last, err := store.GroupVersion(ctx, group.ID)
	if err != nil {
		t.Fatalf("GroupVersion failed: %v", err)
	}

	check := func(step string) {
		t.Helper()
		v, err := store.GroupVersion(ctx, group.ID)
		if err != nil {
			t.Fatalf("GroupVersion after %s failed: %v", step, err)
		}
		if v <= last {
			t.Errorf("version did not increase after %s: %d -> %d", step, last, v)
		}
		last = v
	}

	receipt, err := store.CreateReceipt(ctx, group.ID, models.ReceiptInput{
		Name:   "Receipt",
		People: []string{"Alice", "Bob"},
	})
	if err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	check("create receipt")

	entry, err := store.AddEntry(ctx, receipt.ID, models.EntryInput{Name: "Item", Price: 1.00, Taxable: true})
	if err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	check("add entry")

	taxable := false
	if _, err := store.UpdateEntry(ctx, entry.ID, models.EntryUpdate{Taxable: &taxable}); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}
	check("update entry")

	name := "Renamed Receipt"
	if _, err := store.UpdateReceipt(ctx, receipt.ID, models.ReceiptUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateReceipt failed: %v", err)
	}
	check("update receipt")

	morePeople := []string{"Alice", "Bob", "Carol"}
	if _, err := store.UpdateGroup(ctx, group.ID, models.GroupUpdate{People: &morePeople}); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	check("update people")

	if err := store.DeleteEntry(ctx, entry.ID); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	check("delete entry")

	if err := store.DeleteReceipt(ctx, receipt.ID); err != nil {
		t.Fatalf("DeleteReceipt failed: %v", err)
	}
	check("delete receipt")

	if _, err := store.GroupVersion(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing group, got %v", err)
	}
}
