// Package store persists the contest audit trail. The ledger and ruleset
// packages remain the in-memory source of truth; the store is a write-behind
// sink so a finished contest can be inspected after the process exits.
package store

import (
	"context"

	"github.com/agonlabs/agon/internal/model"
)

// Recorder receives every durable contest artifact as it is produced.
// Implementations must tolerate being called from multiple goroutines.
type Recorder interface {
	RecordTransaction(ctx context.Context, txn model.Transaction) error
	RecordRulesetVersion(ctx context.Context, v model.RulesetVersion) error
	RecordRound(ctx context.Context, round *model.Round) error
	Close() error
}

// Nop is a Recorder that discards everything, for contests that do not need
// an audit trail.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordTransaction(context.Context, model.Transaction) error       { return nil }
func (Nop) RecordRulesetVersion(context.Context, model.RulesetVersion) error { return nil }
func (Nop) RecordRound(context.Context, *model.Round) error                  { return nil }
func (Nop) Close() error                                                     { return nil }
