// Package ruleset holds the contest constitution: the current governing text
// plus its full append-only version history. Only one designated role may
// write; everyone may read.
package ruleset

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

// ErrNotAuthorized is returned when an update comes from anyone other than
// the designated authoring role.
var ErrNotAuthorized = errors.New("not authorized to update ruleset")

// DefaultText is the starter constitution in effect until the governing role
// rewrites it.
const DefaultText = `All unit tests pass: + $1,000

Compilation error or any failing test: - $500

Latency: - $5 x (seconds from problem release to response)

The governing role may overwrite these lines (or add new ones) after any round.`

// Store holds the current ruleset text and its version history.
// Updates are a single atomic swap: concurrent readers observe either the
// pre-update or the post-update text, never a partial write.
type Store struct {
	mu      sync.RWMutex
	author  string
	current string
	history []model.RulesetVersion
}

// New creates a store with the given authorized author role and origin text.
// An empty origin falls back to DefaultText.
func New(author, origin string) *Store {
	if origin == "" {
		origin = DefaultText
	}
	return &Store{author: author, current: origin}
}

// Current returns the ruleset text now in effect.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Author returns the single role name allowed to update the ruleset.
func (s *Store) Author() string {
	return s.author
}

// Update replaces the current text and appends one RulesetVersion. It fails
// with ErrNotAuthorized unless author matches the designated role, leaving
// the current text and history untouched.
func (s *Store) Update(newText, author string) (model.RulesetVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if author != s.author {
		return model.RulesetVersion{}, fmt.Errorf("%w: %q (only %q may update)", ErrNotAuthorized, author, s.author)
	}

	v := model.RulesetVersion{
		ID:        model.NewID(),
		Timestamp: time.Now().UTC(),
		Author:    author,
		OldText:   s.current,
		NewText:   newText,
	}
	s.history = append(s.history, v)
	s.current = newText
	return v, nil
}

// History returns the ordered list of versions, oldest first. Replaying
// NewText over the origin reconstructs every past state.
func (s *Store) History() []model.RulesetVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RulesetVersion, len(s.history))
	copy(out, s.history)
	return out
}
