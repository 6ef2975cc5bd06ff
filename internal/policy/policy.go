// Package policy defines the pluggable reward decision logic. The
// orchestrator never interprets ruleset text itself; it hands each agent's
// outcome, latency, and the current ruleset to a Policy and posts whatever
// signed amount comes back.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

// MaxAbsReward bounds any single reward to keep a runaway policy from
// bankrupting or minting the contest in one round.
const MaxAbsReward = 10_000

// Evaluation is one responding agent's record within a round, provided to
// policies as competitive context.
type Evaluation struct {
	Agent   string
	Code    string
	Outcome model.ExecutionOutcome

	// ResponseLatency is solicitation-to-response wall clock. This is the
	// latency signal the ruleset's latency clauses refer to; sandbox
	// execution duration lives in Outcome and is never conflated with it.
	ResponseLatency time.Duration
}

// RoundContext carries everything a policy may consult when scoring one
// agent: the problem, the governing ruleset text, and every responding
// agent's evaluation. Each Score call yields a reward for exactly the named
// target; context about other agents is read-only input, never a channel for
// side effects.
type RoundContext struct {
	Problem     model.Problem
	RulesetText string
	Evaluations []Evaluation
}

// Evaluation returns the record for the named agent, or nil.
func (rc *RoundContext) Evaluation(agent string) *Evaluation {
	for i := range rc.Evaluations {
		if rc.Evaluations[i].Agent == agent {
			return &rc.Evaluations[i]
		}
	}
	return nil
}

// Reward is a policy's verdict for one agent.
type Reward struct {
	Amount      int64
	Explanation string
}

// Policy decides rewards and may revise the ruleset between rounds.
type Policy interface {
	// Score produces the reward for exactly the target agent.
	Score(ctx context.Context, target string, rc RoundContext) (Reward, error)

	// MaybeReviseRuleset optionally proposes a replacement ruleset text
	// after seeing the full round. ok is false when no change is wanted.
	MaybeReviseRuleset(ctx context.Context, rc RoundContext) (text string, ok bool, err error)
}

// Formula implements the starter constitution arithmetic: full pass +1000,
// any failure -500, minus 5 per second of response latency. It never revises
// the ruleset. It is also the fallback when a delegated policy is
// unavailable.
type Formula struct{}

var _ Policy = Formula{}

// Score applies the formula to the target's evaluation.
func (Formula) Score(_ context.Context, target string, rc RoundContext) (Reward, error) {
	ev := rc.Evaluation(target)
	if ev == nil {
		return Reward{}, fmt.Errorf("no evaluation for agent %q", target)
	}

	var amount int64
	if ev.Outcome.Success && ev.Outcome.TestsPassed == ev.Outcome.TestsTotal {
		amount = 1000
	} else {
		amount = -500
	}

	latencyPenalty := int64(5 * ev.ResponseLatency.Seconds())
	amount -= latencyPenalty

	explanation := fmt.Sprintf("%d/%d tests, %.1fs latency",
		ev.Outcome.TestsPassed, ev.Outcome.TestsTotal, ev.ResponseLatency.Seconds())
	return Reward{Amount: Clamp(amount), Explanation: explanation}, nil
}

// MaybeReviseRuleset never proposes a change.
func (Formula) MaybeReviseRuleset(context.Context, RoundContext) (string, bool, error) {
	return "", false, nil
}

// Clamp bounds an amount to [-MaxAbsReward, MaxAbsReward].
func Clamp(amount int64) int64 {
	if amount > MaxAbsReward {
		return MaxAbsReward
	}
	if amount < -MaxAbsReward {
		return -MaxAbsReward
	}
	return amount
}
