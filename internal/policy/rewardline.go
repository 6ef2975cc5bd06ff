package policy

import (
	"fmt"
	"regexp"
	"strconv"
)

// Delegated policies (model-backed evaluators) reply in free text and are
// asked to end with "Reward: $<amount>". These patterns recover the amount,
// most specific first.
var (
	rewardLineRe = regexp.MustCompile(`(?i)reward:\s*\$?\s*(-?\d+)`)
	dollarRe     = regexp.MustCompile(`\$\s*(-?\d+)`)
	labeledRe    = regexp.MustCompile(`(?i)(?:amount|total):\s*\$?\s*(-?\d+)`)
)

// ParseRewardLine extracts a signed reward amount from a delegated policy's
// free-text response, clamped to MaxAbsReward. It tries the mandated
// "Reward: $N" line first, then the last dollar amount, then a labeled
// amount. An unparseable response is an error, never a silent zero.
func ParseRewardLine(text string) (int64, error) {
	if m := rewardLineRe.FindStringSubmatch(text); m != nil {
		return parseClamped(m[1])
	}
	if ms := dollarRe.FindAllStringSubmatch(text, -1); len(ms) > 0 {
		return parseClamped(ms[len(ms)-1][1])
	}
	if ms := labeledRe.FindAllStringSubmatch(text, -1); len(ms) > 0 {
		return parseClamped(ms[len(ms)-1][1])
	}
	return 0, fmt.Errorf("no reward amount in response %q", truncate(text, 120))
}

func parseClamped(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reward amount %q: %w", s, err)
	}
	return Clamp(n), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
