// Package editor implements the three-tier string replacement strategy used
// for workspace file edits: exact match, whitespace-flexible match, and
// token-sequence match, tried in that order. A tier is accepted only when
// its match count equals the caller's expected count, so ambiguous edits
// fail with a diagnostic instead of guessing.
package editor

import (
	"fmt"
	"regexp"
	"strings"
)

// Match type labels reported in Result.MatchType.
const (
	MatchExact              = "exact"
	MatchWhitespaceFlexible = "whitespace_flexible"
	MatchToken              = "token"
)

// Result is the outcome of one replacement attempt. Exactly one of Content
// (on success) or Error (on failure) is populated.
type Result struct {
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	MatchType string `json:"match_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Strategy performs targeted string replacements on full document text.
// It is stateless and safe for concurrent use.
type Strategy struct{}

// New creates a Strategy.
func New() *Strategy {
	return &Strategy{}
}

var (
	wsRunRe = regexp.MustCompile(`[ \t\n]+`)
	tokenRe = regexp.MustCompile(`\w+|[^\w\s]`)
)

// PerformReplacement replaces oldStr with newStr in content, accepting
// whitespace drift but never token drift. expectedCount is the number of
// occurrences the caller asserts exist; a tier whose match count differs
// is skipped, and if no tier matches the expectation the result carries a
// diagnostic error instead of modified content.
func (s *Strategy) PerformReplacement(content, oldStr, newStr string, expectedCount int) Result {
	if oldStr == "" {
		return Result{
			Success: false,
			Error:   "old string is empty; provide the exact text to replace, including surrounding context",
		}
	}

	// Normalize to LF for matching; the detected style is restored on output.
	crlf := strings.Contains(content, "\r\n")
	normContent := strings.ReplaceAll(content, "\r\n", "\n")
	normOld := strings.ReplaceAll(oldStr, "\r\n", "\n")
	normNew := strings.ReplaceAll(newStr, "\r\n", "\n")

	// Tier 1: exact substring match.
	exactCount := strings.Count(normContent, normOld)
	if exactCount == expectedCount {
		return Result{
			Success:   true,
			Content:   restoreLineEnding(strings.ReplaceAll(normContent, normOld, normNew), crlf),
			MatchType: MatchExact,
		}
	}

	// Tier 2: whitespace runs in the search text match any whitespace run.
	wsCount := 0
	if spans, ok := findSpans(whitespaceFlexiblePattern(normOld), normContent); ok {
		wsCount = len(spans)
		if wsCount == expectedCount {
			return Result{
				Success:   true,
				Content:   restoreLineEnding(replaceSpans(normContent, spans, normNew), crlf),
				MatchType: MatchWhitespaceFlexible,
			}
		}
	}

	// Tier 3: token sequence match, ignoring whitespace entirely.
	tokenCount := 0
	if spans, ok := findSpans(tokenPattern(normOld), normContent); ok {
		tokenCount = len(spans)
		if tokenCount == expectedCount {
			return Result{
				Success:   true,
				Content:   restoreLineEnding(replaceSpans(normContent, spans, normNew), crlf),
				MatchType: MatchToken,
			}
		}
	}

	return Result{
		Success: false,
		Error:   formatMatchError(normOld, exactCount, wsCount, tokenCount, expectedCount),
	}
}

func restoreLineEnding(content string, crlf bool) string {
	if crlf {
		return strings.ReplaceAll(content, "\n", "\r\n")
	}
	return content
}

// whitespaceFlexiblePattern escapes the search text and collapses every
// maximal run of space/tab/newline into \s+.
func whitespaceFlexiblePattern(text string) string {
	return wsRunRe.ReplaceAllString(regexp.QuoteMeta(text), `\s+`)
}

// tokenPattern tokenizes the search text into word runs and single symbol
// characters (whitespace dropped), then joins the escaped tokens with \s*.
func tokenPattern(text string) string {
	tokens := tokenRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return regexp.QuoteMeta(text)
	}
	escaped := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped[i] = regexp.QuoteMeta(tok)
	}
	return strings.Join(escaped, `\s*`)
}

// findSpans returns the non-overlapping match spans of pattern in content.
// A pattern that fails to compile counts as zero matches, not an error.
func findSpans(pattern, content string) ([][]int, bool) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, false
	}
	return re.FindAllStringIndex(content, -1), true
}

// replaceSpans substitutes replacement for each span, processing spans in
// reverse document order so earlier offsets stay valid.
func replaceSpans(content string, spans [][]int, replacement string) string {
	result := content
	for i := len(spans) - 1; i >= 0; i-- {
		result = result[:spans[i][0]] + replacement + result[spans[i][1]:]
	}
	return result
}

const previewLimit = 200

func formatMatchError(oldStr string, exact, whitespace, token, expected int) string {
	preview := oldStr
	if runes := []rune(oldStr); len(runes) > previewLimit {
		preview = string(runes[:previewLimit]) + "..."
	}
	return fmt.Sprintf(`no matching content found in file

<error_details>
search text:
%s

match results:
- exact matches: %d
- whitespace-flexible matches: %d
- token matches: %d
- expected matches: %d

recovery suggestions:
1. use read_workspace_file to confirm the file's current content
2. make sure old_string matches the file content exactly (including whitespace and indentation)
3. add more surrounding context to make the match unique
4. check whether the file was modified by another operation
</error_details>`, preview, exact, whitespace, token, expected)
}
