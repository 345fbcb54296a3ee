package kb

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// ExtractTitle returns the text of the first level-1 heading in a markdown
// document, falling back to the first heading of any level, then "".
func ExtractTitle(source []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(source))

	var first, h1 *ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if first == nil {
			first = heading
		}
		if heading.Level == 1 {
			h1 = heading
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	heading := h1
	if heading == nil {
		heading = first
	}
	if heading == nil {
		return ""
	}
	return strings.TrimSpace(headingText(heading, source))
}

func headingText(heading *ast.Heading, source []byte) string {
	var b strings.Builder
	// Inline containers (emphasis, code spans) contribute their literal text.
	_ = ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
