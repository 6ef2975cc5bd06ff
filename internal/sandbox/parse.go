package sandbox

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	passedRe  = regexp.MustCompile(`(\d+) passed`)
	failedRe  = regexp.MustCompile(`(\d+) failed`)
	erroredRe = regexp.MustCompile(`(\d+) error`)
)

// ParseSummary extracts (passed, total) test counts from a harness's textual
// summary line, e.g. "3 passed in 0.02s" or "2 failed, 1 passed in 0.03s".
// When no recognizable summary exists the result is fail-closed: exactly one
// test that failed. Total is always >= 1.
func ParseSummary(output string) (passed, total int) {
	for _, line := range strings.Split(output, "\n") {
		if !isSummaryLine(line) {
			continue
		}
		p := firstCount(passedRe, line)
		f := firstCount(failedRe, line)
		e := firstCount(erroredRe, line)
		passed = p
		total = p + f + e
		break
	}
	if total == 0 {
		return 0, 1
	}
	return passed, total
}

// isSummaryLine recognizes pytest-style summary lines: counts followed by a
// duration ("... in 0.02s") or a combined passed/failed tally. Plain mentions
// of "passed" in submission output are not summaries.
func isSummaryLine(line string) bool {
	if strings.Contains(line, "passed") && strings.Contains(line, "failed") {
		return true
	}
	for _, marker := range []string{"passed in", "failed in", "error in", "errors in"} {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func firstCount(re *regexp.Regexp, line string) int {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
