package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// extractSectionsMarkdown splits on headings found by the markdown parser.
// Unlike the plain-text scanner this ignores heading-like lines inside code
// fences and block quotes. Headings deeper than level 4 stay inside their
// parent section.
func extractSectionsMarkdown(text string) []section {
	src := []byte(text)
	doc := markdown.Parser().Parse(gmtext.NewReader(src))

	type mark struct {
		start   int
		bodyPos int
		title   string
	}
	var marks []mark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > 4 {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		start := lineStartBefore(src, lines.At(0).Start)
		bodyPos := nextLineStart(src, lines.At(lines.Len()-1).Stop)
		if isSetextUnderline(src, bodyPos) {
			bodyPos = nextLineStart(src, bodyPos)
		}
		marks = append(marks, mark{
			start:   start,
			bodyPos: bodyPos,
			title:   strings.TrimSpace(string(h.Text(src))),
		})
		return ast.WalkContinue, nil
	})

	if len(marks) == 0 {
		return []section{{Heading: "Document", Text: strings.TrimSpace(text)}}
	}

	var sections []section
	if preamble := strings.TrimSpace(text[:marks[0].start]); preamble != "" {
		sections = append(sections, section{Heading: "Document", Text: preamble})
	}
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		sections = append(sections, section{
			Heading: m.title,
			Text:    strings.TrimSpace(text[m.bodyPos:end]),
		})
	}
	return sections
}

func lineStartBefore(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func nextLineStart(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	if pos < len(src) {
		pos++
	}
	return pos
}

func isSetextUnderline(src []byte, pos int) bool {
	seen := false
	for i := pos; i < len(src) && src[i] != '\n'; i++ {
		switch src[i] {
		case '=', '-':
			seen = true
		case ' ', '\t':
		default:
			return false
		}
	}
	return seen
}
