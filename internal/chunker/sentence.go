package chunker

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// splitSentences cuts text at terminal punctuation followed by whitespace.
// Trailing text without punctuation is returned as a final sentence, so no
// input is ever lost.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	consumed := 0
	for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		sent := strings.TrimSpace(text[m[2]:m[3]])
		if sent != "" {
			sentences = append(sentences, sent)
		}
		consumed = m[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

var (
	htmlScriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlBlockPattern  = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|tr|table|section|article)[^>]*>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	htmlHeadPattern   = regexp.MustCompile(`(?is)<h([1-4])[^>]*>(.*?)</h[1-4]>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags flattens an HTML page to plain text, converting h1-h4 tags to
// markdown headings so section extraction still sees document structure.
func stripHTMLTags(content string) string {
	content = htmlScriptPattern.ReplaceAllString(content, "")
	content = htmlHeadPattern.ReplaceAllStringFunc(content, func(m string) string {
		parts := htmlHeadPattern.FindStringSubmatch(m)
		level := int(parts[1][0] - '0')
		inner := strings.TrimSpace(htmlTagPattern.ReplaceAllString(parts[2], ""))
		return "\n" + strings.Repeat("#", level) + " " + inner + "\n"
	})
	content = htmlBlockPattern.ReplaceAllString(content, "\n")
	content = htmlTagPattern.ReplaceAllString(content, " ")
	content = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&nbsp;", " ", "&#39;", "'").Replace(content)
	content = blankRunPattern.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
