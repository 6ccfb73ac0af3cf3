package chunker

import (
	"context"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/model"
)

const (
	MimeTypePDF      = "application/pdf"
	MimeTypeHTML     = "text/html"
	MimeTypeMarkdown = "text/markdown"
	MimeTypeText     = "text/plain"
)

// Substrings scrubbed from section text before storage or embedding. Uploaded
// documents are untrusted input to later prompts.
var injectionMarkers = []string{
	"<system>", "</system>", "</context>", "IGNORE PREVIOUS", "ignore previous",
}

type Config struct {
	MaxChars         int
	OverlapSentences int
	MinChars         int
}

func DefaultConfig() Config {
	return Config{MaxChars: 1200, OverlapSentences: 2, MinChars: 50}
}

// Chunker splits raw documents into a parent/child hierarchy: one parent per
// structurally detected section, sentence-bounded children per parent.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1200
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 50
	}
	return &Chunker{cfg: cfg}
}

type section struct {
	Heading string
	Text    string
	Page    int
}

// Chunk splits a raw document. A document with no usable sections returns
// empty slices and no error; the caller decides whether zero chunks is fatal.
func (c *Chunker) Chunk(ctx context.Context, raw []byte, mimeType, docID, filename string) ([]model.ParentChunk, []model.ChildChunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID), zap.String("source", filename))

	var sections []section
	var err error
	switch mimeType {
	case MimeTypePDF:
		sections, err = extractSectionsPDF(raw)
		if err != nil {
			return nil, nil, err
		}
	case MimeTypeHTML:
		sections = extractSectionsText(stripHTMLTags(normalizeText(string(raw))))
	case MimeTypeMarkdown:
		sections = extractSectionsMarkdown(normalizeText(string(raw)))
	default:
		sections = extractSectionsText(normalizeText(string(raw)))
	}

	var parents []model.ParentChunk
	var children []model.ChildChunk
	for _, sec := range sections {
		text := stripInjection(sec.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		parentIdx := len(parents)
		parents = append(parents, model.ParentChunk{
			DocID:     docID,
			ParentIdx: parentIdx,
			Source:    filename,
			Section:   sec.Heading,
			Page:      sec.Page,
			Text:      text,
		})
		for childIdx, childText := range c.splitChildren(text) {
			children = append(children, model.ChildChunk{
				DocID:     docID,
				ParentIdx: parentIdx,
				ChildIdx:  childIdx,
				Source:    filename,
				Section:   sec.Heading,
				Page:      sec.Page,
				Text:      childText,
			})
		}
	}

	logger.Info("document chunked",
		zap.Int("sections", len(sections)),
		zap.Int("parents", len(parents)),
		zap.Int("children", len(children)),
	)
	return parents, children, nil
}

// splitChildren greedily packs sentences up to MaxChars, carrying the last
// OverlapSentences sentences into the next chunk. Fragments under MinChars
// are dropped.
func (c *Chunker) splitChildren(text string) []string {
	sentences := splitSentences(text)
	var chunks []string
	var current []string
	currentLen := 0

	for _, sent := range sentences {
		if currentLen+len(sent) > c.cfg.MaxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			if c.cfg.OverlapSentences > 0 && len(current) > c.cfg.OverlapSentences {
				current = append([]string(nil), current[len(current)-c.cfg.OverlapSentences:]...)
			} else if c.cfg.OverlapSentences == 0 {
				current = nil
			}
			currentLen = 0
			for _, s := range current {
				currentLen += len(s)
			}
		}
		current = append(current, sent)
		currentLen += len(sent)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	kept := chunks[:0]
	for _, chunk := range chunks {
		if len(strings.TrimSpace(chunk)) > c.cfg.MinChars {
			kept = append(kept, chunk)
		}
	}
	return kept
}

var headingPattern = regexp.MustCompile(`(?m)^(#{1,4} .+|.+\n[=\-]{3,})`)

// extractSectionsText splits on markdown headings or setext-style underlined
// headings. A document with no headings is one section.
func extractSectionsText(text string) []section {
	matches := headingPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []section{{Heading: "Document", Text: strings.TrimSpace(text)}}
	}

	var sections []section
	for i, loc := range matches {
		heading := text[loc[0]:loc[1]]
		start := loc[1]
		if start < len(text) && text[start] == '\n' {
			start++
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		clean := strings.TrimSpace(strings.TrimLeft(strings.SplitN(heading, "\n", 2)[0], "# "))
		sections = append(sections, section{
			Heading: clean,
			Text:    strings.TrimSpace(text[start:end]),
		})
	}
	return sections
}

func stripInjection(text string) string {
	for _, marker := range injectionMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	return text
}

func normalizeText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// MimeTypeFromName maps an upload filename to the coarse type the chunker
// dispatches on.
func MimeTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return MimeTypePDF
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return MimeTypeHTML
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return MimeTypeMarkdown
	default:
		return MimeTypeText
	}
}
