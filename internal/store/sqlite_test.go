package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListTransactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	txns := []model.Transaction{
		{ID: model.NewID(), Timestamp: base, Actor: "alice", Delta: 1000, Balance: 1000, Reason: "problem 001 submission"},
		{ID: model.NewID(), Timestamp: base.Add(time.Second), Actor: "bob", Delta: -500, Balance: -500, Reason: "problem 001 submission"},
	}
	for _, txn := range txns {
		if err := s.RecordTransaction(ctx, txn); err != nil {
			t.Fatalf("RecordTransaction: %v", err)
		}
	}

	got, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if got[0].Actor != "alice" || got[0].Delta != 1000 {
		t.Errorf("first transaction = %+v", got[0])
	}
	if got[1].Actor != "bob" || got[1].Balance != -500 {
		t.Errorf("second transaction = %+v", got[1])
	}
}

func TestRecordRulesetVersion(t *testing.T) {
	s := newTestStore(t)
	v := model.RulesetVersion{
		ID:        model.NewID(),
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Author:    "arbiter",
		OldText:   "old rules",
		NewText:   "new rules",
	}
	if err := s.RecordRulesetVersion(context.Background(), v); err != nil {
		t.Fatalf("RecordRulesetVersion: %v", err)
	}
}

func TestRecordAndGetRound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	round := &model.Round{
		ID:         model.NewID(),
		ProblemID:  "001",
		StartedAt:  now,
		FinishedAt: now.Add(2 * time.Second),
		Results: []*model.AgentRound{
			{
				Agent:  "alice",
				Result: model.AgentResultOK,
				Outcome: &model.ExecutionOutcome{
					Success: true, TestsPassed: 3, TestsTotal: 3,
				},
				Reward: 1000,
			},
			{Agent: "bob", Result: model.AgentResultTimedOut, Reward: 0},
		},
		RulesetUpdated: true,
	}
	if err := s.RecordRound(ctx, round); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}

	got, err := s.GetRound(ctx, round.ID)
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if got.ProblemID != "001" || !got.RulesetUpdated {
		t.Errorf("round = %+v", got)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(got.Results))
	}
	ar := got.ResultFor("alice")
	if ar == nil || ar.Outcome == nil || ar.Outcome.TestsPassed != 3 {
		t.Errorf("alice result did not round-trip: %+v", ar)
	}
	if got.ResultFor("bob").Result != model.AgentResultTimedOut {
		t.Errorf("bob result = %+v", got.ResultFor("bob"))
	}
}

func TestGetRoundNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRound(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	ctx := context.Background()
	if err := r.RecordTransaction(ctx, model.Transaction{}); err != nil {
		t.Errorf("RecordTransaction: %v", err)
	}
	if err := r.RecordRound(ctx, &model.Round{}); err != nil {
		t.Errorf("RecordRound: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
