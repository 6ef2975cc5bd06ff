package model

import "time"

// Contest phase constants.
const (
	PhaseIdle   = "idle"
	PhaseActive = "active"
	PhaseEnded  = "ended"
)

// Per-agent round result tags.
const (
	AgentResultOK       = "ok"
	AgentResultTimedOut = "timed_out"
	AgentResultFailed   = "failed"
)

// validTransitions maps each contest phase to the set of phases it may
// transition to. Ended is terminal; there is no path back to idle.
var validTransitions = map[string]map[string]bool{
	PhaseIdle: {
		PhaseActive: true,
	},
	PhaseActive: {
		PhaseEnded: true,
	},
}

// ValidTransition reports whether transitioning from one phase to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Problem is one coding task in the contest. Immutable after release except
// for ReleasedAt, which is stamped exactly once when the orchestrator begins
// soliciting submissions for it.
type Problem struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	StubCode    string     `json:"stub_code" yaml:"stub_code"`
	Harness     string     `json:"harness" yaml:"harness"`
	TimeoutS    int        `json:"timeout_s" yaml:"timeout_s"`
	MemLimitMB  int        `json:"mem_limit_mb" yaml:"mem_limit_mb"`
	ReleasedAt  *time.Time `json:"released_at,omitempty" yaml:"-"`
}

// Submission is one agent's answer for one problem. Raw is the agent's
// unmodified output; Code is the extracted executable form.
type Submission struct {
	Agent     string `json:"agent"`
	ProblemID string `json:"problem_id"`
	Raw       string `json:"raw"`
	Code      string `json:"code"`

	// ResponseLatency is wall-clock time from solicitation to the agent's
	// response. It is independent of sandbox execution duration.
	ResponseLatency time.Duration `json:"response_latency_ns"`
}

// ExecutionOutcome is the result of running one submission against the
// problem harness. Created once per submission per round, never mutated.
type ExecutionOutcome struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	MemoryPeakMB float64       `json:"memory_peak_mb"`
	TestsPassed  int           `json:"tests_passed"`
	TestsTotal   int           `json:"tests_total"`
}

// Transaction is one immutable ledger entry. Balance is the actor's balance
// immediately after applying Delta.
type Transaction struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Delta     int64     `json:"delta"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
}

// RulesetVersion records one constitution edit. OldText always equals the
// text that was current immediately before the update.
type RulesetVersion struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	OldText   string    `json:"old_text"`
	NewText   string    `json:"new_text"`
}

// FeedbackRecord is delivered to each responding agent after a round.
type FeedbackRecord struct {
	ProblemID   string            `json:"problem_id"`
	Outcome     *ExecutionOutcome `json:"outcome"`
	Reward      int64             `json:"reward"`
	Explanation string            `json:"explanation"`
	Balance     int64             `json:"balance"`
	RulesetText string            `json:"ruleset_text"`
}

// AgentRound is one agent's record within a round. Submission and Outcome
// are nil unless Result is "ok".
type AgentRound struct {
	Agent       string            `json:"agent"`
	Result      string            `json:"result"`
	Error       string            `json:"error,omitempty"`
	Submission  *Submission       `json:"submission,omitempty"`
	Outcome     *ExecutionOutcome `json:"outcome,omitempty"`
	Reward      int64             `json:"reward"`
	Explanation string            `json:"explanation,omitempty"`
}

// Round is the full evaluation record for one problem.
type Round struct {
	ID             string        `json:"id"`
	ProblemID      string        `json:"problem_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Results        []*AgentRound `json:"results"`
	RulesetUpdated bool          `json:"ruleset_updated"`
}

// ResultFor returns the per-agent record for the named agent, or nil.
func (r *Round) ResultFor(agent string) *AgentRound {
	for _, ar := range r.Results {
		if ar.Agent == agent {
			return ar
		}
	}
	return nil
}
