// Package agent defines the contract between the contest orchestrator and
// competing agents. The orchestrator only ever talks to agents through this
// interface; wiring a model-backed agent in means implementing it.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

// Agent is one contest participant. Produce is called once per round with
// the released problem and should honor ctx cancellation: the orchestrator
// enforces the per-agent response budget through it, and abandons calls that
// outlive it. Receive delivers post-round feedback and must not block; the
// orchestrator isolates panics from it but not deadlocks.
type Agent interface {
	Name() string
	Produce(ctx context.Context, problem model.Problem) (string, error)
	Receive(fb model.FeedbackRecord)
}

// Scripted is a deterministic agent that replays canned responses, used for
// local contests and tests. Responses are consumed per problem id; when none
// is registered for a problem, Fallback is returned.
type Scripted struct {
	AgentName string
	Responses map[string]string
	Fallback  string

	// Delay is applied before every response. Delays beyond the response
	// budget make the agent time out, which is sometimes the point.
	Delay time.Duration

	// Err, when set, makes every Produce call fail.
	Err error

	mu       sync.Mutex
	feedback []model.FeedbackRecord
}

var _ Agent = (*Scripted)(nil)

func (s *Scripted) Name() string { return s.AgentName }

// Produce returns the canned response for the problem, after Delay.
func (s *Scripted) Produce(ctx context.Context, problem model.Problem) (string, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	if resp, ok := s.Responses[problem.ID]; ok {
		return resp, nil
	}
	return s.Fallback, nil
}

// Receive records the feedback for later inspection.
func (s *Scripted) Receive(fb model.FeedbackRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
}

// Feedback returns a copy of all feedback received so far.
func (s *Scripted) Feedback() []model.FeedbackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FeedbackRecord, len(s.feedback))
	copy(out, s.feedback)
	return out
}
