package allocator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tabsplit/tabsplit/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocate(t *testing.T) {
	taxRate := dec("0.07")

	tests := []struct {
		name         string
		entries      []Entry
		roster       []string
		wantErr      error
		validateFunc func(t *testing.T, res *Result)
	}{
		{
			name: "taxable entry assigned to one person",
			entries: []Entry{
				{Name: "Latte", Price: dec("10.00"), Taxable: true, AssignedTo: []string{"a"}},
			},
			roster: []string{"a", "b"},
			validateFunc: func(t *testing.T, res *Result) {
				if got := res.Shares["a"]; !got.Equal(dec("10.70")) {
					t.Errorf("a's share = %s, want 10.70", got)
				}
				if got := res.Shares["b"]; !got.IsZero() {
					t.Errorf("b's share = %s, want 0", got)
				}
				if !res.Total.Equal(dec("10.70")) {
					t.Errorf("total = %s, want 10.70", res.Total)
				}
			},
		},
		{
			name: "non-taxable entry splits evenly among three",
			entries: []Entry{
				{Name: "Pizza", Price: dec("9.00"), AssignedTo: []string{"a", "b", "c"}},
			},
			roster: []string{"a", "b", "c"},
			validateFunc: func(t *testing.T, res *Result) {
				for _, id := range []string{"a", "b", "c"} {
					if got := res.Shares[id]; !got.Equal(dec("3.00")) {
						t.Errorf("%s's share = %s, want 3.00", id, got)
					}
				}
			},
		},
		{
			name: "unassigned entry falls back to the whole roster",
			entries: []Entry{
				{Name: "Bread", Price: dec("4.50"), AssignedTo: nil},
			},
			roster: []string{"a", "b", "c"},
			validateFunc: func(t *testing.T, res *Result) {
				if got := res.Shares["a"]; !got.Equal(dec("1.50")) {
					t.Errorf("a's share = %s, want 1.50", got)
				}
			},
		},
		{
			name:    "no entries means everyone owes zero",
			entries: nil,
			roster:  []string{"a", "b"},
			validateFunc: func(t *testing.T, res *Result) {
				if len(res.Shares) != 2 {
					t.Fatalf("expected 2 shares, got %d", len(res.Shares))
				}
				for id, share := range res.Shares {
					if !share.IsZero() {
						t.Errorf("%s's share = %s, want 0", id, share)
					}
				}
				if !res.Total.IsZero() {
					t.Errorf("total = %s, want 0", res.Total)
				}
			},
		},
		{
			name:    "no entries and no roster is a defined zero result",
			entries: nil,
			roster:  nil,
			validateFunc: func(t *testing.T, res *Result) {
				if len(res.Shares) != 0 || !res.Total.IsZero() {
					t.Errorf("expected empty zero result, got %+v", res)
				}
			},
		},
		{
			name: "unassigned entry with empty roster fails",
			entries: []Entry{
				{Name: "Orphan", Price: dec("5.00")},
			},
			roster:  nil,
			wantErr: models.ErrInvalidAllocation,
		},
		{
			name: "assignee outside the roster fails",
			entries: []Entry{
				{Name: "Beer", Price: dec("6.00"), AssignedTo: []string{"z"}},
			},
			roster:  []string{"a"},
			wantErr: models.ErrValidation,
		},
		{
			name: "negative price fails",
			entries: []Entry{
				{Name: "Refund", Price: dec("-1.00"), AssignedTo: []string{"a"}},
			},
			roster:  []string{"a"},
			wantErr: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Allocate(tt.entries, tt.roster, Config{TaxRate: taxRate})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Allocate error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, res)
			}
		})
	}
}

// Shares must sum to the tax-adjusted total even when divisions don't come
// out even.
func TestAllocateSharesSumToTotal(t *testing.T) {
	entries := []Entry{
		{Name: "Organic Apples", Price: dec("5.99"), Taxable: true, AssignedTo: []string{"a", "b", "c"}},
		{Name: "Bananas", Price: dec("3.50"), Taxable: true},
		{Name: "Sourdough Bread", Price: dec("4.99"), AssignedTo: []string{"b"}},
		{Name: "Almond Milk", Price: dec("4.25"), AssignedTo: []string{"a", "c"}},
		{Name: "Free Sample", Price: decimal.Zero, Taxable: true},
	}
	roster := []string{"a", "b", "c"}

	res, err := Allocate(entries, roster, Config{TaxRate: dec("0.07")})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	sum := decimal.Zero
	for _, share := range res.Shares {
		sum = sum.Add(share)
	}
	if !sum.Equal(res.Total) {
		t.Errorf("shares sum to %s, total is %s", sum, res.Total)
	}

	want := dec("5.99").Mul(dec("1.07")).
		Add(dec("3.50").Mul(dec("1.07"))).
		Add(dec("4.99")).
		Add(dec("4.25"))
	if !res.Total.Equal(want) {
		t.Errorf("total = %s, want %s", res.Total, want)
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	entries := []Entry{
		{Name: "Pad Thai", Price: dec("13.37"), Taxable: true, AssignedTo: []string{"a", "b"}},
		{Name: "Spring Rolls", Price: dec("7.77"), Taxable: true},
	}
	roster := []string{"a", "b", "c"}

	first, err := Allocate(entries, roster, Config{TaxRate: dec("0.07")})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Allocate(entries, roster, Config{TaxRate: dec("0.07")})
		if err != nil {
			t.Fatalf("Allocate failed on run %d: %v", i, err)
		}
		if !again.Total.Equal(first.Total) {
			t.Fatalf("total changed between runs: %s vs %s", again.Total, first.Total)
		}
		for id, share := range first.Shares {
			if !again.Shares[id].Equal(share) {
				t.Fatalf("%s's share changed between runs: %s vs %s", id, again.Shares[id], share)
			}
		}
	}
}

func TestAllocateDuplicateAssigneesCountOnce(t *testing.T) {
	entries := []Entry{
		{Name: "Nachos", Price: dec("8.00"), AssignedTo: []string{"a", "a", "b"}},
	}
	res, err := Allocate(entries, []string{"a", "b"}, Config{TaxRate: decimal.Zero})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got := res.Shares["a"]; !got.Equal(dec("4.00")) {
		t.Errorf("a's share = %s, want 4.00", got)
	}
}
