// Package ledger implements the append-only transaction log that is the
// single source of truth for contest standings. Balances are never cached:
// every read is a fold over the transaction history, so a balance can never
// drift from the log that produced it.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

// ErrNegativeAmount is returned when a deposit, withdrawal, or transfer is
// given a negative amount. Signed deltas go through Adjust instead.
var ErrNegativeAmount = errors.New("amount must be non-negative")

// ErrInsufficientBalance is returned by Transfer when the debit would push
// the source actor below zero. Adjust carries no such check; debt is allowed
// for scorekeeping.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Standing is one leaderboard row.
type Standing struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// Ledger is an in-memory append-only transaction store. Safe for concurrent use.
type Ledger struct {
	mu   sync.RWMutex
	txns []model.Transaction
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Adjust appends one transaction with the given signed delta and returns the
// created record, whose Balance field is the actor's new balance. A negative
// resulting balance is not an error.
func (l *Ledger) Adjust(actor string, delta int64, reason string) model.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(actor, delta, reason)
}

// Deposit adds a non-negative amount to an actor's balance.
func (l *Ledger) Deposit(actor string, amount int64, reason string) (model.Transaction, error) {
	if amount < 0 {
		return model.Transaction{}, ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(actor, amount, reason), nil
}

// Withdraw removes a non-negative amount from an actor's balance. The
// resulting balance may go negative.
func (l *Ledger) Withdraw(actor string, amount int64, reason string) (model.Transaction, error) {
	if amount < 0 {
		return model.Transaction{}, ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(actor, -amount, reason), nil
}

// Transfer debits from and credits to as two transactions under one lock.
// It fails atomically, with no partial effect, when from's balance is below
// amount. Callers that want unchecked movement use Adjust twice.
func (l *Ledger) Transfer(from, to string, amount int64, reason string) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balanceLocked(from) < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, l.balanceLocked(from), amount)
	}
	l.append(from, -amount, fmt.Sprintf("transfer to %s: %s", to, reason))
	l.append(to, amount, fmt.Sprintf("transfer from %s: %s", from, reason))
	return nil
}

// Balance returns the fold of all deltas for the actor, zero if unknown.
func (l *Ledger) Balance(actor string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(actor)
}

// TotalMoney returns the sum of every actor's balance.
func (l *Ledger) TotalMoney() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, tx := range l.txns {
		total += tx.Delta
	}
	return total
}

// Leaderboard returns all known actors ordered by descending balance.
// Ties break by first-transaction order, so results are deterministic.
func (l *Ledger) Leaderboard() []Standing {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balances := make(map[string]int64)
	firstSeen := make(map[string]int)
	var order []string
	for i, tx := range l.txns {
		if _, ok := balances[tx.Actor]; !ok {
			firstSeen[tx.Actor] = i
			order = append(order, tx.Actor)
		}
		balances[tx.Actor] += tx.Delta
	}

	standings := make([]Standing, 0, len(order))
	for _, name := range order {
		standings = append(standings, Standing{Name: name, Balance: balances[name]})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Balance != standings[j].Balance {
			return standings[i].Balance > standings[j].Balance
		}
		return firstSeen[standings[i].Name] < firstSeen[standings[j].Name]
	})
	return standings
}

// History returns the most recent limit transactions in chronological order,
// optionally filtered by actor. An empty actor matches everything; a
// non-positive limit returns the full history.
func (l *Ledger) History(actor string, limit int) []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.Transaction
	for _, tx := range l.txns {
		if actor == "" || tx.Actor == actor {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Account returns a read-only view scoped to one actor. It exposes no write
// surface, so it is safe to hand to the actor itself.
func (l *Ledger) Account(actor string) *Account {
	return &Account{name: actor, ledger: l}
}

// append creates and stores one transaction. Caller must hold l.mu.
func (l *Ledger) append(actor string, delta int64, reason string) model.Transaction {
	tx := model.Transaction{
		ID:        model.NewID(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Delta:     delta,
		Balance:   l.balanceLocked(actor) + delta,
		Reason:    reason,
	}
	l.txns = append(l.txns, tx)
	return tx
}

// balanceLocked folds the actor's deltas. Caller must hold l.mu.
func (l *Ledger) balanceLocked(actor string) int64 {
	var sum int64
	for _, tx := range l.txns {
		if tx.Actor == actor {
			sum += tx.Delta
		}
	}
	return sum
}

// Account is a read-only per-actor view of the ledger.
type Account struct {
	name   string
	ledger *Ledger
}

// Name returns the actor this account belongs to.
func (a *Account) Name() string { return a.name }

// Balance returns the actor's current balance.
func (a *Account) Balance() int64 { return a.ledger.Balance(a.name) }

// History returns the actor's most recent limit transactions.
func (a *Account) History(limit int) []model.Transaction {
	return a.ledger.History(a.name, limit)
}

// Leaderboard returns the current standings for every actor.
func (a *Account) Leaderboard() []Standing { return a.ledger.Leaderboard() }
