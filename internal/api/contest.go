package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agonlabs/agon/internal/ledger"
	"github.com/agonlabs/agon/internal/model"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.contest.Status())
}

type leaderboardResponse struct {
	Standings  []ledger.Standing `json:"standings"`
	TotalMoney int64             `json:"total_money"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	l := s.contest.Ledger()
	s.writeJSON(w, http.StatusOK, leaderboardResponse{
		Standings:  l.Leaderboard(),
		TotalMoney: l.TotalMoney(),
	})
}

type historyResponse struct {
	Actor        string              `json:"actor,omitempty"`
	Transactions []model.Transaction `json:"transactions"`
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	limit := parseIntQuery(r, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	txns := s.contest.Ledger().History(actor, limit)
	if txns == nil {
		txns = []model.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Actor: actor, Transactions: txns})
}

type constitutionResponse struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (s *Server) handleConstitution(w http.ResponseWriter, r *http.Request) {
	rules := s.contest.Ruleset()
	s.writeJSON(w, http.StatusOK, constitutionResponse{
		Text:   rules.Current(),
		Author: rules.Author(),
	})
}

type constitutionHistoryResponse struct {
	Versions []model.RulesetVersion `json:"versions"`
}

func (s *Server) handleConstitutionHistory(w http.ResponseWriter, r *http.Request) {
	versions := s.contest.Ruleset().History()
	if versions == nil {
		versions = []model.RulesetVersion{}
	}
	s.writeJSON(w, http.StatusOK, constitutionHistoryResponse{Versions: versions})
}

// roundSummary is the list form of a round; full results live at /rounds/{id}.
type roundSummary struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Agents         int       `json:"agents"`
	RulesetUpdated bool      `json:"ruleset_updated"`
}

type listRoundsResponse struct {
	Rounds []roundSummary `json:"rounds"`
	Total  int            `json:"total"`
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	rounds := s.contest.Rounds()
	summaries := make([]roundSummary, len(rounds))
	for i, rd := range rounds {
		summaries[i] = roundSummary{
			ID:             rd.ID,
			ProblemID:      rd.ProblemID,
			StartedAt:      rd.StartedAt,
			FinishedAt:     rd.FinishedAt,
			Agents:         len(rd.Results),
			RulesetUpdated: rd.RulesetUpdated,
		}
	}
	s.writeJSON(w, http.StatusOK, listRoundsResponse{Rounds: summaries, Total: len(summaries)})
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	round := s.contest.Round(id)
	if round == nil {
		s.writeError(w, http.StatusNotFound, "round not found")
		return
	}
	s.writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.contest.Export())
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	q := r.URL.Query().Get(key)
	if q == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return defaultVal
	}
	return v
}
