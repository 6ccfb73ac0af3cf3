package chunker

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

type pdfSpan struct {
	Text     string
	FontSize float64
	Page     int
}

// extractSectionsPDF walks text spans page by page and promotes spans set in
// a noticeably larger font than the body to section headings. Headings must
// be short, start uppercase and not end with a period, which filters out
// enlarged body text like drop caps or pull quotes.
func extractSectionsPDF(raw []byte) ([]section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var spans []pdfSpan
	for pageNo := 1; pageNo <= reader.NumPage(); pageNo++ {
		page := reader.Page(pageNo)
		if page.V.IsNull() {
			continue
		}
		spans = append(spans, collectSpans(page.Content().Text, pageNo)...)
	}
	if len(spans) == 0 {
		return nil, nil
	}

	body := bodyFontSize(spans)
	var sections []section
	current := section{Heading: "Document", Page: spans[0].Page}
	var buf strings.Builder
	for _, span := range spans {
		if isPDFHeading(span, body) {
			if text := strings.TrimSpace(buf.String()); text != "" {
				current.Text = text
				sections = append(sections, current)
			}
			current = section{Heading: strings.TrimSpace(span.Text), Page: span.Page}
			buf.Reset()
			continue
		}
		buf.WriteString(span.Text)
		buf.WriteString(" ")
	}
	current.Text = strings.TrimSpace(buf.String())
	sections = append(sections, current)

	kept := sections[:0]
	for _, sec := range sections {
		if sec.Text != "" {
			kept = append(kept, sec)
		}
	}
	return kept, nil
}

// collectSpans merges character-level pdf text items into line spans, using
// the Y coordinate to detect row breaks and the font size to detect style
// breaks inside a row.
func collectSpans(texts []pdf.Text, pageNo int) []pdfSpan {
	var spans []pdfSpan
	var buf strings.Builder
	var lastY, lastSize float64
	flush := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			spans = append(spans, pdfSpan{Text: text, FontSize: lastSize, Page: pageNo})
		}
		buf.Reset()
	}
	for i, t := range texts {
		if i > 0 && (math.Abs(t.Y-lastY) > 0.5 || math.Abs(t.FontSize-lastSize) > 0.1) {
			flush()
		}
		buf.WriteString(t.S)
		lastY, lastSize = t.Y, t.FontSize
	}
	flush()
	return spans
}

// bodyFontSize picks the dominant font size, weighted by characters rendered
// at that size.
func bodyFontSize(spans []pdfSpan) float64 {
	weights := make(map[float64]int)
	for _, span := range spans {
		weights[span.FontSize] += len(span.Text)
	}
	var best float64
	var bestWeight int
	for size, weight := range weights {
		if weight > bestWeight {
			best, bestWeight = size, weight
		}
	}
	return best
}

func isPDFHeading(span pdfSpan, body float64) bool {
	text := strings.TrimSpace(span.Text)
	if text == "" || len(text) >= 120 {
		return false
	}
	if span.FontSize < body*1.2 {
		return false
	}
	first := []rune(text)[0]
	if !unicode.IsUpper(first) {
		return false
	}
	return !strings.HasSuffix(text, ".")
}
