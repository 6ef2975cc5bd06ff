package main

import (
	"context"
	"log"
	"os"

	"github.com/agonlabs/agon/internal/agent"
	"github.com/agonlabs/agon/internal/api"
	"github.com/agonlabs/agon/internal/config"
	"github.com/agonlabs/agon/internal/contest"
	"github.com/agonlabs/agon/internal/ledger"
	"github.com/agonlabs/agon/internal/policy"
	"github.com/agonlabs/agon/internal/problems"
	"github.com/agonlabs/agon/internal/ruleset"
	"github.com/agonlabs/agon/internal/store"
)

// rulesetAuthor is the role allowed to rewrite the constitution.
const rulesetAuthor = "arbiter"

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("agon: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"problems_path", cfg.ProblemsPath,
	)

	rec, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer rec.Close()

	var source problems.Source = problems.Fallback()
	if cfg.ProblemsPath != "" {
		source = problems.FileSource{Path: cfg.ProblemsPath}
	}

	c := contest.New(
		ledger.New(),
		ruleset.New(rulesetAuthor, ""),
		source,
		policy.Formula{},
		rec,
		logger,
		contest.Options{
			ResponseBudget: cfg.ResponseBudget,
			Interpreter:    cfg.Interpreter,
		},
	)

	for _, a := range demoAgents() {
		if err := c.Register(a); err != nil {
			log.Fatalf("failed to register agent %s: %v", a.Name(), err)
		}
	}

	// The contest plays out in the background; the API serves live state
	// throughout and the full audit trail once it ends.
	go func() {
		ctx := context.Background()
		if err := c.Start(ctx); err != nil {
			logger.Error("failed to start contest", "error", err)
			return
		}
		if _, err := c.RunAll(ctx); err != nil {
			logger.Error("contest aborted", "error", err)
			return
		}
		for i, s := range c.Ledger().Leaderboard() {
			logger.Info("final standing", "rank", i+1, "agent", s.Name, "balance", s.Balance)
		}
	}()

	srv := api.NewServer(cfg.ListenAddr, c, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// demoAgents returns two scripted participants for the built-in starter
// problems: one that solves them and one that guesses.
func demoAgents() []agent.Agent {
	solver := &agent.Scripted{
		AgentName: "ada",
		Responses: map[string]string{
			"001": "```python\ndef solve(a, b):\n    return a + b\n```",
			"002": "```python\ndef solve(text):\n    return len(text)\n```",
			"003": "```python\ndef solve(n):\n    return n % 2 == 0\n```",
			"004": "```python\ndef solve(numbers):\n    return max(numbers)\n```",
			"005": "```python\ndef solve(text):\n    return text[::-1]\n```",
		},
		Fallback: "def solve(*args):\n    return None",
	}
	guesser := &agent.Scripted{
		AgentName: "hal",
		Fallback:  "Here is my attempt:\n```python\ndef solve(*args):\n    return 42\n```",
	}
	return []agent.Agent{solver, guesser}
}
