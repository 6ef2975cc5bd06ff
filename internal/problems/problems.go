// Package problems supplies the ordered problem list a contest runs over.
// The orchestrator does not care whether problems come from a file, a
// generator, or the built-in fallback set, only that ids are unique and
// sortable.
package problems

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agonlabs/agon/internal/model"
)

// Defaults applied to problems that omit limits.
const (
	DefaultTimeoutS   = 5
	DefaultMemLimitMB = 256
)

// Source loads the problem set. Load is invoked exactly once, before the
// contest starts.
type Source interface {
	Load(ctx context.Context) ([]*model.Problem, error)
}

// FileSource loads problems from a YAML file.
type FileSource struct {
	Path string
}

type problemFile struct {
	Problems []*model.Problem `yaml:"problems"`
}

// Load parses, validates, and sorts the problem file.
func (f FileSource) Load(_ context.Context) ([]*model.Problem, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}

	var pf problemFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse problem file: %w", err)
	}
	if len(pf.Problems) == 0 {
		return nil, fmt.Errorf("problem file %s contains no problems", f.Path)
	}

	return normalize(pf.Problems)
}

// Static wraps a fixed problem list as a Source.
type Static []*model.Problem

// Load validates and sorts the wrapped list.
func (s Static) Load(_ context.Context) ([]*model.Problem, error) {
	return normalize(s)
}

// normalize applies limit defaults, rejects duplicate or missing ids, and
// sorts by id.
func normalize(in []*model.Problem) ([]*model.Problem, error) {
	seen := make(map[string]bool, len(in))
	out := make([]*model.Problem, 0, len(in))
	for i, p := range in {
		if p.ID == "" {
			return nil, fmt.Errorf("problem at index %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate problem id %q", p.ID)
		}
		seen[p.ID] = true

		cp := *p
		if cp.TimeoutS <= 0 {
			cp.TimeoutS = DefaultTimeoutS
		}
		if cp.MemLimitMB <= 0 {
			cp.MemLimitMB = DefaultMemLimitMB
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Fallback returns the built-in starter problems, used when no problem file
// is configured.
func Fallback() Source {
	return Static(starterProblems())
}

func starterProblems() []*model.Problem {
	specs := []struct {
		id, description, body, check string
	}{
		{"001", "Write a function that adds two numbers", "def solve(a, b):\n    pass", "assert solve(5, 3) == 8"},
		{"002", "Write a function that returns the length of a string", "def solve(text):\n    pass", "assert solve('hello') == 5"},
		{"003", "Write a function that checks if a number is even", "def solve(n):\n    pass", "assert solve(4) is True\nassert solve(5) is False"},
		{"004", "Write a function that finds the maximum in a list", "def solve(numbers):\n    pass", "assert solve([1, 5, 3, 9, 2]) == 9"},
		{"005", "Write a function that reverses a string", "def solve(text):\n    pass", "assert solve('hello') == 'olleh'"},
	}

	out := make([]*model.Problem, 0, len(specs))
	for _, s := range specs {
		out = append(out, &model.Problem{
			ID:          s.id,
			Description: s.description,
			StubCode:    s.body,
			Harness:     harnessFor(s.check),
			TimeoutS:    DefaultTimeoutS,
			MemLimitMB:  DefaultMemLimitMB,
		})
	}
	return out
}

// harnessFor wraps assertions in a harness that reports a parseable summary
// line and a non-zero exit on failure.
func harnessFor(assertions string) string {
	return fmt.Sprintf(`try:
%s
    print("1 passed in 0.01s")
except Exception:
    print("1 failed in 0.01s")
    raise SystemExit(1)
`, indent(assertions))
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
