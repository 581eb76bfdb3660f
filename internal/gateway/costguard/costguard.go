// Package costguard tracks per-profile LLM spend against configured
// budgets to prevent runaway provider bills.
package costguard

import (
	"context"
	"fmt"
	"sync"
)

// Decision is the outcome of evaluating a hypothetical spend against a
// profile's budget. Remaining is nil for profiles with no budget.
type Decision struct {
	Allowed   bool
	Remaining *float64
}

// BudgetExceededError is surfaced to callers when a profile's budget
// cannot cover the expected cost.
type BudgetExceededError struct {
	Remaining *float64
}

func (e *BudgetExceededError) Error() string {
	if e.Remaining == nil {
		return "cost budget exceeded"
	}
	return fmt.Sprintf("cost budget exceeded, %.4f USD remaining", *e.Remaining)
}

// Guard is the budget-tracking contract shared by both backends.
type Guard interface {
	// Evaluate decides whether a spend of expectedCost fits within the
	// profile's remaining budget. It never records usage.
	Evaluate(ctx context.Context, profile string, expectedCost float64) Decision
	// Record adds actual spend to the profile. Usage never decreases.
	Record(ctx context.Context, profile string, actualCost float64)
	// Remaining reports the budget left for the profile, nil if the
	// profile has no budget configured.
	Remaining(ctx context.Context, profile string) *float64
}

// MemoryGuard tracks spend in process memory.
type MemoryGuard struct {
	mu      sync.Mutex
	budgets map[string]float64
	usage   map[string]float64
}

// NewMemoryGuard creates a guard with the given per-profile budgets.
// Profiles absent from the map have no budget and are always allowed.
func NewMemoryGuard(budgets map[string]float64) *MemoryGuard {
	g := &MemoryGuard{
		budgets: make(map[string]float64, len(budgets)),
		usage:   make(map[string]float64, len(budgets)),
	}
	for profile, budget := range budgets {
		g.budgets[profile] = budget
	}
	return g
}

func (g *MemoryGuard) Evaluate(ctx context.Context, profile string, expectedCost float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return decide(g.budgets, profile, g.usage[profile], expectedCost)
}

func (g *MemoryGuard) Record(ctx context.Context, profile string, actualCost float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage[profile] += actualCost
}

func (g *MemoryGuard) Remaining(ctx context.Context, profile string) *float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	budget, ok := g.budgets[profile]
	if !ok {
		return nil
	}
	remaining := budget - g.usage[profile]
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// decide applies the budget arithmetic shared by both backends.
func decide(budgets map[string]float64, profile string, used, expectedCost float64) Decision {
	budget, ok := budgets[profile]
	if !ok {
		return Decision{Allowed: true, Remaining: nil}
	}

	remaining := budget - used
	if expectedCost > remaining {
		denied := remaining
		if denied < 0 {
			denied = 0
		}
		return Decision{Allowed: false, Remaining: &denied}
	}

	left := remaining - expectedCost
	return Decision{Allowed: true, Remaining: &left}
}
