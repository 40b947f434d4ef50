package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

const unverifiedNotice = "Some numeric values could not be verified against the underlying evidence and were removed. " +
	"The figures that remain are backed by the cited sources."

// AssembleAnswer builds the final payload from the accepted draft. Only
// citations actually referenced by a [n] marker are kept, renumbered in
// order of first appearance.
func AssembleAnswer(
	draft string,
	bundle PromptBundle,
	verification domain.VerificationResult,
	diagnostics []string,
	startedAt time.Time,
) domain.AnswerResult {
	text, citations := renumberCitations(draft, bundle.Citations)
	return domain.AnswerResult{
		ResponseText: text,
		Citations:    citations,
		ChunksUsed:   bundle.ChunksUsed,
		Verified:     verification.Verified,
		LatencyMs:    time.Since(startedAt).Milliseconds(),
		Diagnostics:  append(diagnostics, verification.Issues...),
	}
}

// RedactUngrounded replaces every ungrounded numeric token with an
// unverified marker and prefixes a notice. Used when a constrained
// regeneration still fails verification.
func RedactUngrounded(draft string, ungrounded []string) string {
	out := draft
	for _, token := range ungrounded {
		out = replaceNumericToken(out, token, "[unverified]")
	}
	return unverifiedNotice + "\n\n" + out
}

func replaceNumericToken(text, token, replacement string) string {
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
	if err != nil {
		return strings.ReplaceAll(text, token, replacement)
	}
	return pattern.ReplaceAllString(text, replacement)
}

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// renumberCitations drops citations the draft never references and
// rewrites the markers to a dense 1..n sequence.
func renumberCitations(draft string, available []domain.Citation) (string, []domain.Citation) {
	byNumber := make(map[string]domain.Citation, len(available))
	for _, c := range available {
		byNumber[markerKey(c.Number)] = c
	}

	renumbered := make(map[string]int)
	var kept []domain.Citation

	text := markerPattern.ReplaceAllStringFunc(draft, func(marker string) string {
		citation, ok := byNumber[marker]
		if !ok {
			return ""
		}
		next, seen := renumbered[marker]
		if !seen {
			next = len(kept) + 1
			renumbered[marker] = next
			citation.Number = next
			kept = append(kept, citation)
		}
		return markerKey(next)
	})

	return strings.TrimSpace(text), kept
}

func markerKey(n int) string {
	return "[" + strconv.Itoa(n) + "]"
}
