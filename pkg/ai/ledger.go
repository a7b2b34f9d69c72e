package ai

import (
	"sync"

	"lessonforge/pkg/domain"
)

// Ledger tracks token spend for a single request against a hard budget.
// Reserve is checked before every dispatch so the stop holds even when the
// provider mis-reports usage; Spend records what the provider billed,
// including failed attempts that reported partial cost. No refunds.
type Ledger struct {
	mu    sync.Mutex
	limit int
	spent int
}

// NewLedger creates a ledger with the given token budget.
func NewLedger(limit int) *Ledger {
	return &Ledger{limit: limit}
}

// Reserve refuses when spending n more tokens would exceed the budget.
// It does not record anything; Spend does that after the call.
func (l *Ledger) Reserve(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.spent+n > l.limit {
		return domain.ErrBudgetExceeded
	}
	return nil
}

// Spend records consumed tokens.
func (l *Ledger) Spend(n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent += n
}

// Spent returns total tokens recorded so far.
func (l *Ledger) Spent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

// Limit returns the configured budget.
func (l *Ledger) Limit() int {
	return l.limit
}
