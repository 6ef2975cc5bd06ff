// Package extract derives the executable form of a raw agent submission.
// Agents often wrap code in markdown fences or surround it with prose; the
// harness needs bare code. Extraction is a pure function of the raw text and
// the expected entry-point name, and is idempotent: extracting an
// already-extracted submission yields the same text.
package extract

import (
	"regexp"
	"strings"
)

// DefaultEntryPoint is assumed when a problem stub declares no function.
const DefaultEntryPoint = "solve"

var (
	fenceRe      = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n(.*?)```")
	entryPointRe = regexp.MustCompile(`def\s+(\w+)\s*\(`)

	// codeStartRe matches lines that begin a top-level code statement.
	// Prose lines ("Here is my solution:") match none of these.
	codeStartRe = regexp.MustCompile(`^(def |class |import |from |@|#|if |elif |for |while |with |return |print\(|(else|try|except|finally)\b|[A-Za-z_][A-Za-z0-9_]*\s*=[^=])`)
)

// EntryPoint returns the function name declared by a problem stub, falling
// back to DefaultEntryPoint when the stub declares none.
func EntryPoint(stub string) string {
	if m := entryPointRe.FindStringSubmatch(stub); m != nil {
		return m[1]
	}
	return DefaultEntryPoint
}

// Code extracts executable code from a raw submission.
//
// Rules, in order:
//  1. If the text contains fenced code blocks, take the first block that
//     references the entry point (or the first block if none do).
//  2. If the result defines the entry-point function, keep only top-level
//     code statements and their indented continuations, dropping prose.
//  3. Otherwise return the text trimmed: the harness may accept it directly.
func Code(raw, entryPoint string) string {
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	return scan(unfence(raw, entryPoint), entryPoint)
}

// unfence returns the content of the most relevant fenced block, or raw
// unchanged when there are no fences.
func unfence(raw, entryPoint string) string {
	blocks := fenceRe.FindAllStringSubmatch(raw, -1)
	if len(blocks) == 0 {
		return raw
	}
	for _, b := range blocks {
		if strings.Contains(b[1], entryPoint) {
			return b[1]
		}
	}
	return blocks[0][1]
}

// scan strips prose from around a definition of the entry-point function.
// When the text does not define the entry point it is returned trimmed,
// which keeps the function idempotent for non-Python submissions.
func scan(text, entryPoint string) string {
	if !strings.Contains(text, "def "+entryPoint) {
		return strings.TrimSpace(text)
	}

	var kept []string
	inCode := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if inCode {
				kept = append(kept, line)
			}
		case codeStartRe.MatchString(line):
			inCode = true
			kept = append(kept, line)
		case line[0] == ' ' || line[0] == '\t':
			// Indented continuation of the preceding statement.
			if inCode {
				kept = append(kept, line)
			}
		default:
			// Top-level prose; anything indented after it is prose too.
			inCode = false
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
