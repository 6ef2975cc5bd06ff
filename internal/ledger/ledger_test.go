package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/agonlabs/agon/internal/ledger"
)

func TestAdjustReturnsRunningBalance(t *testing.T) {
	l := ledger.New()

	tx := l.Adjust("alice", 1000, "round 1")
	if tx.Balance != 1000 {
		t.Errorf("balance after first adjust = %d, want 1000", tx.Balance)
	}
	tx = l.Adjust("alice", -300, "round 2")
	if tx.Balance != 700 {
		t.Errorf("balance after second adjust = %d, want 700", tx.Balance)
	}
	if tx.Delta != -300 {
		t.Errorf("delta = %d, want -300", tx.Delta)
	}
}

func TestBalanceIsFoldOfHistory(t *testing.T) {
	l := ledger.New()
	l.Adjust("alice", 1000, "win")
	l.Adjust("bob", -500, "loss")
	l.Adjust("alice", -250, "penalty")
	if _, err := l.Deposit("bob", 100, "bonus"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := l.Withdraw("alice", 50, "fee"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	// The balance must equal the sum of deltas recorded in history.
	for _, actor := range []string{"alice", "bob"} {
		var sum int64
		for _, tx := range l.History(actor, 0) {
			sum += tx.Delta
		}
		if got := l.Balance(actor); got != sum {
			t.Errorf("Balance(%s) = %d, history fold = %d", actor, got, sum)
		}
	}
	if got := l.Balance("nobody"); got != 0 {
		t.Errorf("Balance(nobody) = %d, want 0", got)
	}
}

func TestBalanceInvariantUnderConcurrentAdjusts(t *testing.T) {
	l := ledger.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Adjust("alice", 1, "inc")
				l.Adjust("alice", -1, "dec")
				l.Adjust("bob", 2, "inc")
			}
		}()
	}
	wg.Wait()

	if got := l.Balance("alice"); got != 0 {
		t.Errorf("Balance(alice) = %d, want 0", got)
	}
	if got := l.Balance("bob"); got != 1600 {
		t.Errorf("Balance(bob) = %d, want 1600", got)
	}

	var fold int64
	for _, tx := range l.History("bob", 0) {
		fold += tx.Delta
	}
	if fold != l.Balance("bob") {
		t.Errorf("history fold = %d, balance = %d", fold, l.Balance("bob"))
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := ledger.New()
	if _, err := l.Deposit("alice", -1, ""); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("Deposit(-1) err = %v, want ErrNegativeAmount", err)
	}
	if _, err := l.Withdraw("alice", -1, ""); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("Withdraw(-1) err = %v, want ErrNegativeAmount", err)
	}
	if err := l.Transfer("alice", "bob", -1, ""); !errors.Is(err, ledger.ErrNegativeAmount) {
		t.Errorf("Transfer(-1) err = %v, want ErrNegativeAmount", err)
	}
	if len(l.History("", 0)) != 0 {
		t.Error("rejected operations must leave no transactions")
	}
}

func TestTransferAtomicOnInsufficientBalance(t *testing.T) {
	l := ledger.New()
	l.Adjust("alice", 100, "seed")
	l.Adjust("bob", 50, "seed")

	err := l.Transfer("alice", "bob", 500, "too much")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Transfer err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.Balance("alice"); got != 100 {
		t.Errorf("alice balance = %d, want 100 (unchanged)", got)
	}
	if got := l.Balance("bob"); got != 50 {
		t.Errorf("bob balance = %d, want 50 (unchanged)", got)
	}

	if err := l.Transfer("alice", "bob", 60, "ok"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := l.Balance("alice"); got != 40 {
		t.Errorf("alice balance = %d, want 40", got)
	}
	if got := l.Balance("bob"); got != 110 {
		t.Errorf("bob balance = %d, want 110", got)
	}
}

func TestLeaderboardOrderAndTies(t *testing.T) {
	l := ledger.New()
	l.Adjust("bob", 0, "registration")
	l.Adjust("alice", 0, "registration")
	l.Adjust("carol", 0, "registration")
	l.Adjust("alice", 1000, "round 1")
	l.Adjust("carol", 500, "round 1")

	// bob and nobody-else tie at their balances; bob registered first among ties.
	got := l.Leaderboard()
	want := []ledger.Standing{
		{Name: "alice", Balance: 1000},
		{Name: "carol", Balance: 500},
		{Name: "bob", Balance: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("leaderboard has %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leaderboard[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLeaderboardTieBreaksByRegistrationOrder(t *testing.T) {
	l := ledger.New()
	l.Adjust("zed", 0, "registration")
	l.Adjust("amy", 0, "registration")

	got := l.Leaderboard()
	if got[0].Name != "zed" || got[1].Name != "amy" {
		t.Errorf("tie order = [%s, %s], want [zed, amy] (first transaction wins)", got[0].Name, got[1].Name)
	}
}

func TestHistoryFilterAndLimit(t *testing.T) {
	l := ledger.New()
	l.Adjust("alice", 1, "a1")
	l.Adjust("bob", 2, "b1")
	l.Adjust("alice", 3, "a2")
	l.Adjust("alice", 4, "a3")

	all := l.History("", 0)
	if len(all) != 4 {
		t.Fatalf("full history = %d entries, want 4", len(all))
	}

	alice := l.History("alice", 2)
	if len(alice) != 2 {
		t.Fatalf("limited history = %d entries, want 2", len(alice))
	}
	// Most recent two, chronological order.
	if alice[0].Reason != "a2" || alice[1].Reason != "a3" {
		t.Errorf("history reasons = [%s, %s], want [a2, a3]", alice[0].Reason, alice[1].Reason)
	}
}

func TestTotalMoney(t *testing.T) {
	l := ledger.New()
	l.Adjust("alice", 1000, "")
	l.Adjust("bob", -500, "")
	if got := l.TotalMoney(); got != 500 {
		t.Errorf("TotalMoney = %d, want 500", got)
	}
}

func TestAccountIsReadOnlyView(t *testing.T) {
	l := ledger.New()
	l.Adjust("alice", 250, "seed")

	acct := l.Account("alice")
	if acct.Name() != "alice" {
		t.Errorf("Name = %q, want alice", acct.Name())
	}
	if got := acct.Balance(); got != 250 {
		t.Errorf("account balance = %d, want 250", got)
	}
	if got := len(acct.History(10)); got != 1 {
		t.Errorf("account history = %d entries, want 1", got)
	}
	if got := acct.Leaderboard(); len(got) != 1 || got[0].Name != "alice" {
		t.Errorf("account leaderboard = %+v, want alice only", got)
	}
}
