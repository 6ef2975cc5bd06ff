// Package contest orchestrates the round lifecycle: problem release,
// concurrent solicitation under a per-agent response budget, sandboxed
// execution, reward settlement through the ledger, feedback delivery, and
// optional ruleset revision between rounds.
package contest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agonlabs/agon/internal/agent"
	"github.com/agonlabs/agon/internal/extract"
	"github.com/agonlabs/agon/internal/ledger"
	"github.com/agonlabs/agon/internal/model"
	"github.com/agonlabs/agon/internal/policy"
	"github.com/agonlabs/agon/internal/problems"
	"github.com/agonlabs/agon/internal/ruleset"
	"github.com/agonlabs/agon/internal/sandbox"
	"github.com/agonlabs/agon/internal/store"
)

// DefaultResponseBudget bounds how long each agent may take to respond to a
// released problem.
const DefaultResponseBudget = 60 * time.Second

var (
	// ErrWrongPhase is returned when an operation is invalid in the current
	// contest phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")

	// ErrDuplicateAgent is returned when registering a name already taken.
	ErrDuplicateAgent = errors.New("agent name already registered")

	// ErrNoAgents is returned by Start when nobody registered.
	ErrNoAgents = errors.New("no agents registered")

	// ErrNoProblems is returned by Start when the source yields an empty set.
	ErrNoProblems = errors.New("no problems loaded")

	// ErrContestEnded is returned by RunRound once every problem has been
	// played.
	ErrContestEnded = errors.New("contest has ended")
)

// Options tunes a Contest. Zero values select defaults.
type Options struct {
	// ResponseBudget is the per-agent solicitation timeout.
	ResponseBudget time.Duration

	// Interpreter and PollInterval are passed through to each sandbox runner.
	Interpreter  string
	PollInterval time.Duration
}

// Contest drives one full competition over an ordered problem set. Safe for
// concurrent use: reads take a snapshot, writes serialize through one mutex,
// and only RunRound performs multi-step work.
type Contest struct {
	ledger *ledger.Ledger
	rules  *ruleset.Store
	source problems.Source
	policy policy.Policy
	rec    store.Recorder
	broker *EventBroker
	logger *slog.Logger
	opts   Options

	mu        sync.RWMutex
	phase     string
	startedAt time.Time
	agents    []agent.Agent
	byName    map[string]agent.Agent
	problems  []*model.Problem
	next      int
	rounds    []*model.Round
}

// New creates an idle contest. All collaborators are required except rec,
// which defaults to the no-op recorder.
func New(l *ledger.Ledger, rules *ruleset.Store, src problems.Source, pol policy.Policy, rec store.Recorder, logger *slog.Logger, opts Options) *Contest {
	if rec == nil {
		rec = store.Nop{}
	}
	if opts.ResponseBudget <= 0 {
		opts.ResponseBudget = DefaultResponseBudget
	}
	return &Contest{
		ledger: l,
		rules:  rules,
		source: src,
		policy: pol,
		rec:    rec,
		broker: NewEventBroker(),
		logger: logger,
		opts:   opts,
		phase:  model.PhaseIdle,
		byName: make(map[string]agent.Agent),
	}
}

// Broker returns the contest's event broker for SSE subscription.
func (c *Contest) Broker() *EventBroker { return c.broker }

// Ledger returns the contest's transaction ledger.
func (c *Contest) Ledger() *ledger.Ledger { return c.ledger }

// Ruleset returns the contest's constitution store.
func (c *Contest) Ruleset() *ruleset.Store { return c.rules }

// Register adds an agent before the contest starts. Names must be unique;
// registration after Start is rejected.
func (c *Contest) Register(a agent.Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseIdle {
		return fmt.Errorf("%w: register requires phase %q, contest is %q", ErrWrongPhase, model.PhaseIdle, c.phase)
	}
	name := a.Name()
	if name == "" {
		return errors.New("agent has no name")
	}
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, name)
	}

	c.agents = append(c.agents, a)
	c.byName[name] = a

	// A zero-amount transaction puts the agent on the leaderboard at zero
	// and fixes its tie-break position before any reward exists.
	txn := c.ledger.Adjust(name, 0, "registration")
	if err := c.rec.RecordTransaction(context.Background(), txn); err != nil {
		c.logger.Error("failed to record registration transaction", "agent", name, "error", err)
	}

	registeredAgents.Inc()
	c.broker.Publish(EventAgentRegistered, map[string]any{"agent": name})
	c.logger.Info("agent registered", "agent", name)
	return nil
}

// Start loads the problem set and transitions idle -> active.
func (c *Contest) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !model.ValidTransition(c.phase, model.PhaseActive) {
		return fmt.Errorf("%w: cannot start from phase %q", ErrWrongPhase, c.phase)
	}
	if len(c.agents) == 0 {
		return ErrNoAgents
	}

	ps, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}
	if len(ps) == 0 {
		return ErrNoProblems
	}

	c.problems = ps
	c.next = 0
	c.phase = model.PhaseActive
	c.startedAt = time.Now().UTC()
	c.broker.Publish(EventContestStarted, map[string]any{
		"agents":   c.agentNames(),
		"problems": len(ps),
	})
	c.logger.Info("contest started", "agents", len(c.agents), "problems", len(ps))
	return nil
}

// RunRound plays the next problem to completion: solicit every agent in
// parallel, execute each submission in its own sandbox, settle rewards
// through the ledger, deliver feedback, and let the policy revise the
// ruleset. Returns ErrContestEnded once all problems are played.
func (c *Contest) RunRound(ctx context.Context) (*model.Round, error) {
	c.mu.Lock()
	if c.phase == model.PhaseEnded {
		c.mu.Unlock()
		return nil, ErrContestEnded
	}
	if c.phase != model.PhaseActive {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: run round requires phase %q, contest is %q", ErrWrongPhase, model.PhaseActive, c.phase)
	}
	prob := c.problems[c.next]
	if prob.ReleasedAt == nil {
		now := time.Now().UTC()
		prob.ReleasedAt = &now
	}
	agents := make([]agent.Agent, len(c.agents))
	copy(agents, c.agents)
	c.mu.Unlock()

	round := &model.Round{
		ID:        model.NewID(),
		ProblemID: prob.ID,
		StartedAt: time.Now().UTC(),
	}
	c.broker.Publish(EventRoundStarted, map[string]any{
		"round_id":   round.ID,
		"problem_id": prob.ID,
	})
	c.logger.Info("round started", "round_id", round.ID, "problem_id", prob.ID)

	results := c.solicit(ctx, agents, prob)
	c.execute(ctx, prob, results)
	c.settle(ctx, prob, results, round)
	c.deliverFeedback(prob, results)
	round.RulesetUpdated = c.maybeRevise(ctx, prob, results)

	round.Results = results
	round.FinishedAt = time.Now().UTC()

	if err := c.rec.RecordRound(ctx, round); err != nil {
		c.logger.Error("failed to record round", "round_id", round.ID, "error", err)
	}

	c.mu.Lock()
	c.rounds = append(c.rounds, round)
	c.next++
	ended := c.next >= len(c.problems)
	if ended {
		c.phase = model.PhaseEnded
	}
	c.mu.Unlock()

	roundsTotal.Inc()
	roundDuration.Observe(round.FinishedAt.Sub(round.StartedAt).Seconds())
	c.broker.Publish(EventRoundCompleted, map[string]any{
		"round_id":        round.ID,
		"problem_id":      prob.ID,
		"ruleset_updated": round.RulesetUpdated,
		"leaderboard":     c.ledger.Leaderboard(),
	})
	c.logger.Info("round completed", "round_id", round.ID, "problem_id", prob.ID,
		"duration", round.FinishedAt.Sub(round.StartedAt))

	if ended {
		c.broker.Publish(EventContestEnded, map[string]any{
			"rounds":      len(c.Rounds()),
			"leaderboard": c.ledger.Leaderboard(),
		})
		c.logger.Info("contest ended", "rounds", len(c.Rounds()))
	}
	return round, nil
}

// RunAll plays rounds until the contest ends.
func (c *Contest) RunAll(ctx context.Context) ([]*model.Round, error) {
	var played []*model.Round
	for {
		round, err := c.RunRound(ctx)
		if errors.Is(err, ErrContestEnded) {
			return played, nil
		}
		if err != nil {
			return played, err
		}
		played = append(played, round)
	}
}

// solicit asks every agent for a submission concurrently, each under its own
// response budget. One agent timing out or failing never affects another:
// each goroutine tags its own slot and always returns nil. An agent whose
// Produce ignores its context is abandoned once the budget expires; the
// stranded call finishes on its own time and its result is discarded.
func (c *Contest) solicit(ctx context.Context, agents []agent.Agent, prob *model.Problem) []*model.AgentRound {
	results := make([]*model.AgentRound, len(agents))
	entryPoint := extract.EntryPoint(prob.StubCode)

	type response struct {
		raw string
		err error
	}

	var g errgroup.Group
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, c.opts.ResponseBudget)
			defer cancel()

			start := time.Now()
			done := make(chan response, 1)
			go func() {
				raw, err := a.Produce(actx, *prob)
				done <- response{raw: raw, err: err}
			}()

			ar := &model.AgentRound{Agent: a.Name()}
			select {
			case resp := <-done:
				latency := time.Since(start)
				switch {
				case resp.err == nil:
					ar.Result = model.AgentResultOK
					ar.Submission = &model.Submission{
						Agent:           a.Name(),
						ProblemID:       prob.ID,
						Raw:             resp.raw,
						Code:            extract.Code(resp.raw, entryPoint),
						ResponseLatency: latency,
					}
				case errors.Is(resp.err, context.DeadlineExceeded):
					ar.Result = model.AgentResultTimedOut
					ar.Error = fmt.Sprintf("no response within %s", c.opts.ResponseBudget)
				default:
					ar.Result = model.AgentResultFailed
					ar.Error = resp.err.Error()
				}
			case <-actx.Done():
				ar.Result = model.AgentResultTimedOut
				ar.Error = fmt.Sprintf("no response within %s", c.opts.ResponseBudget)
			}
			results[i] = ar
			return nil
		})
	}
	g.Wait()

	for _, ar := range results {
		submissionsTotal.WithLabelValues(ar.Result).Inc()
		if ar.Result == model.AgentResultOK {
			c.broker.Publish(EventSubmissionReceived, map[string]any{
				"agent":      ar.Agent,
				"problem_id": prob.ID,
				"latency":    ar.Submission.ResponseLatency.Seconds(),
			})
		} else {
			c.logger.Warn("agent produced no submission", "agent", ar.Agent,
				"result", ar.Result, "error", ar.Error)
		}
	}
	return results
}

// execute runs each submission in its own single-use sandbox, concurrently.
func (c *Contest) execute(ctx context.Context, prob *model.Problem, results []*model.AgentRound) {
	var g errgroup.Group
	for _, ar := range results {
		if ar.Result != model.AgentResultOK {
			continue
		}
		ar := ar
		g.Go(func() error {
			runner := sandbox.NewRunner(sandbox.Config{
				Interpreter:  c.opts.Interpreter,
				PollInterval: c.opts.PollInterval,
			}, c.logger)
			outcome := runner.Execute(ctx, sandbox.Request{
				Code:       ar.Submission.Code,
				Harness:    prob.Harness,
				TimeoutS:   prob.TimeoutS,
				MemLimitMB: prob.MemLimitMB,
			})
			ar.Outcome = &outcome
			sandboxDuration.Observe(outcome.Duration.Seconds())
			return nil
		})
	}
	g.Wait()
}

// settle scores every responding agent and posts rewards to the ledger.
// Scoring starts only after every sandbox outcome exists, so policies see the
// complete round. Agents that never submitted get no transaction.
func (c *Contest) settle(ctx context.Context, prob *model.Problem, results []*model.AgentRound, round *model.Round) {
	rc := policy.RoundContext{
		Problem:     *prob,
		RulesetText: c.rules.Current(),
	}
	for _, ar := range results {
		if ar.Result != model.AgentResultOK {
			continue
		}
		rc.Evaluations = append(rc.Evaluations, policy.Evaluation{
			Agent:           ar.Agent,
			Code:            ar.Submission.Code,
			Outcome:         *ar.Outcome,
			ResponseLatency: ar.Submission.ResponseLatency,
		})
	}

	for _, ar := range results {
		if ar.Result != model.AgentResultOK {
			continue
		}
		reward, err := c.policy.Score(ctx, ar.Agent, rc)
		if err != nil {
			// A broken policy must not stall settlement; fall back to the
			// constitution's arithmetic.
			c.logger.Error("policy scoring failed, falling back to formula",
				"agent", ar.Agent, "error", err)
			reward, err = policy.Formula{}.Score(ctx, ar.Agent, rc)
			if err != nil {
				c.logger.Error("formula fallback failed", "agent", ar.Agent, "error", err)
				continue
			}
		}

		ar.Reward = reward.Amount
		ar.Explanation = reward.Explanation
		txn := c.ledger.Adjust(ar.Agent, reward.Amount, fmt.Sprintf("problem %s submission", prob.ID))
		if err := c.rec.RecordTransaction(ctx, txn); err != nil {
			c.logger.Error("failed to record transaction", "txn_id", txn.ID, "error", err)
		}
		c.logger.Info("reward settled", "agent", ar.Agent, "round_id", round.ID,
			"amount", reward.Amount, "balance", txn.Balance)
	}
}

// deliverFeedback hands each responding agent its post-round record. A panic
// in one agent's Receive is contained and never takes the round down.
func (c *Contest) deliverFeedback(prob *model.Problem, results []*model.AgentRound) {
	text := c.rules.Current()
	for _, ar := range results {
		if ar.Result != model.AgentResultOK {
			continue
		}
		a := c.agentByName(ar.Agent)
		if a == nil {
			continue
		}
		c.safeReceive(a, model.FeedbackRecord{
			ProblemID:   prob.ID,
			Outcome:     ar.Outcome,
			Reward:      ar.Reward,
			Explanation: ar.Explanation,
			Balance:     c.ledger.Balance(ar.Agent),
			RulesetText: text,
		})
	}
}

func (c *Contest) safeReceive(a agent.Agent, fb model.FeedbackRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("agent panicked in feedback delivery", "agent", a.Name(), "panic", r)
		}
	}()
	a.Receive(fb)
}

// maybeRevise lets the policy rewrite the constitution after the round. A
// rejected or failed revision is logged and the round still counts.
func (c *Contest) maybeRevise(ctx context.Context, prob *model.Problem, results []*model.AgentRound) bool {
	rc := policy.RoundContext{Problem: *prob, RulesetText: c.rules.Current()}
	for _, ar := range results {
		if ar.Result == model.AgentResultOK {
			rc.Evaluations = append(rc.Evaluations, policy.Evaluation{
				Agent:           ar.Agent,
				Code:            ar.Submission.Code,
				Outcome:         *ar.Outcome,
				ResponseLatency: ar.Submission.ResponseLatency,
			})
		}
	}

	text, ok, err := c.policy.MaybeReviseRuleset(ctx, rc)
	if err != nil {
		c.logger.Error("ruleset revision failed", "error", err)
		return false
	}
	if !ok || text == c.rules.Current() {
		return false
	}

	v, err := c.rules.Update(text, c.rules.Author())
	if err != nil {
		c.logger.Error("ruleset update rejected", "error", err)
		return false
	}
	if err := c.rec.RecordRulesetVersion(ctx, v); err != nil {
		c.logger.Error("failed to record ruleset version", "version_id", v.ID, "error", err)
	}
	c.logger.Info("ruleset updated", "version_id", v.ID, "author", v.Author)
	return true
}

// Status is a point-in-time snapshot of the contest.
type Status struct {
	Phase        string            `json:"phase"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	Agents       []string          `json:"agents"`
	ProblemCount int               `json:"problem_count"`
	NextProblem  string            `json:"next_problem,omitempty"`
	RoundsPlayed int               `json:"rounds_played"`
	Leaderboard  []ledger.Standing `json:"leaderboard"`
}

// Status returns a snapshot of phase, participants, and standings.
func (c *Contest) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Phase:        c.phase,
		Agents:       c.agentNames(),
		ProblemCount: len(c.problems),
		RoundsPlayed: len(c.rounds),
		Leaderboard:  c.ledger.Leaderboard(),
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		st.StartedAt = &t
	}
	if c.phase == model.PhaseActive && c.next < len(c.problems) {
		st.NextProblem = c.problems[c.next].ID
	}
	return st
}

// Rounds returns all completed rounds in play order.
func (c *Contest) Rounds() []*model.Round {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Round, len(c.rounds))
	copy(out, c.rounds)
	return out
}

// Round returns one completed round by ID, or nil.
func (c *Contest) Round(id string) *model.Round {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rounds {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Export is the full audit bundle for a contest.
type Export struct {
	GeneratedAt    time.Time              `json:"generated_at"`
	Phase          string                 `json:"phase"`
	Leaderboard    []ledger.Standing      `json:"leaderboard"`
	TotalMoney     int64                  `json:"total_money"`
	Transactions   []model.Transaction    `json:"transactions"`
	RulesetHistory []model.RulesetVersion `json:"ruleset_history"`
	Rounds         []*model.Round         `json:"rounds"`
}

// Export assembles the complete audit trail: every transaction, every
// ruleset version, and every round record.
func (c *Contest) Export() Export {
	return Export{
		GeneratedAt:    time.Now().UTC(),
		Phase:          c.Status().Phase,
		Leaderboard:    c.ledger.Leaderboard(),
		TotalMoney:     c.ledger.TotalMoney(),
		Transactions:   c.ledger.History("", 0),
		RulesetHistory: c.rules.History(),
		Rounds:         c.Rounds(),
	}
}

// agentNames returns registered names in registration order. Caller must
// hold c.mu.
func (c *Contest) agentNames() []string {
	names := make([]string, len(c.agents))
	for i, a := range c.agents {
		names[i] = a.Name()
	}
	return names
}

func (c *Contest) agentByName(name string) agent.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[name]
}
