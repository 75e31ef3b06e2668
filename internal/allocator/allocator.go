// Package allocator computes per-person cost shares for a receipt.
//
// Allocation is a pure function: no I/O, no hidden state, deterministic for
// identical input. Callers re-run it whenever the underlying receipt changes.
package allocator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tabsplit/tabsplit/internal/models"
)

// Entry is one line item to allocate.
type Entry struct {
	Name       string
	Price      decimal.Decimal
	Taxable    bool
	AssignedTo []string // person IDs, subset of the roster; empty = whole roster
}

// Config carries the allocation knobs. The tax rate is injected rather than
// hard-coded: it is jurisdiction-dependent configuration, not business law.
type Config struct {
	// TaxRate is the fractional rate applied to taxable entries, e.g. 0.07.
	TaxRate decimal.Decimal
}

// Result is the outcome of one allocation.
type Result struct {
	// Shares maps person ID to the amount they owe. Every roster member has
	// an entry, including those who owe zero.
	Shares map[string]decimal.Decimal

	// Total is the sum of all effective (tax-adjusted) entry prices. The
	// shares always sum to exactly this value.
	Total decimal.Decimal
}

var one = decimal.NewFromInt(1)

// Allocate computes each roster member's owed amount.
//
// A taxable entry costs price*(1+rate); a non-taxable entry costs its price.
// An entry with assignees splits its effective price evenly among them. An
// entry with no assignees splits evenly across the entire roster; that is the
// one supported fallback policy. Splits hand any indivisible remainder to the
// last participant in the divisor set, so shares sum exactly to Total.
//
// With no entries at all, every roster member owes zero (an empty roster is
// fine too). An unassigned entry combined with an empty roster has nobody to
// charge and fails with models.ErrInvalidAllocation.
func Allocate(entries []Entry, roster []string, cfg Config) (*Result, error) {
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate %s is negative: %w", cfg.TaxRate, models.ErrValidation)
	}

	shares := make(map[string]decimal.Decimal, len(roster))
	inRoster := make(map[string]bool, len(roster))
	for _, id := range roster {
		shares[id] = decimal.Zero
		inRoster[id] = true
	}

	total := decimal.Zero
	for _, entry := range entries {
		if entry.Price.IsNegative() {
			return nil, fmt.Errorf("entry %q has negative price %s: %w", entry.Name, entry.Price, models.ErrValidation)
		}

		effective := entry.Price
		if entry.Taxable {
			effective = effective.Mul(one.Add(cfg.TaxRate))
		}
		total = total.Add(effective)

		divisor := dedupe(entry.AssignedTo)
		if len(divisor) == 0 {
			divisor = roster
		} else {
			for _, id := range divisor {
				if !inRoster[id] {
					return nil, fmt.Errorf("entry %q assigned to %s outside the roster: %w", entry.Name, id, models.ErrValidation)
				}
			}
		}
		if len(divisor) == 0 {
			return nil, fmt.Errorf("entry %q has no assignees and the roster is empty: %w", entry.Name, models.ErrInvalidAllocation)
		}

		n := decimal.NewFromInt(int64(len(divisor)))
		per := effective.Div(n)
		// Division may round; the last participant absorbs the remainder so
		// the shares still sum to the effective price.
		remainder := effective.Sub(per.Mul(n))
		for i, id := range divisor {
			share := per
			if i == len(divisor)-1 {
				share = share.Add(remainder)
			}
			shares[id] = shares[id].Add(share)
		}
	}

	return &Result{Shares: shares, Total: total}, nil
}

// dedupe drops repeated IDs while preserving first-seen order.
func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
