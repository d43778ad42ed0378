// Package preview builds bounded-size previews of upstream result sets.
//
// The summarizer is a pure projection of one record into a fixed-shape
// summary; the budget enforcer orders and truncates collections of records
// so the serialized preview stays within a predictable size. Neither does
// any I/O.
package preview

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/inboxtools/outlook-mcp/model"
)

const (
	// MaxExcerptLen is the excerpt budget in characters, before the
	// ellipsis marker.
	MaxExcerptLen = 150
	// Ellipsis marks a truncated excerpt.
	Ellipsis = "..."

	defaultTitle  = "(No subject)"
	defaultSender = "Unknown"
)

// Summarize projects a record into a summary. Total: missing optional fields
// fall back to defaults and never produce an error. ResultID and Ref are
// positional and are filled in by the budget enforcer.
func Summarize(rec model.Record) model.Summary {
	title := rec.Subject
	if title == "" {
		title = defaultTitle
	}
	from := rec.From
	if from == "" {
		from = defaultSender
	}

	excerpt := ""
	if e, ok := rec.TopExtract(); ok {
		excerpt = TruncateAtWord(e.Text, MaxExcerptLen)
	}

	return model.Summary{
		Title:       title,
		From:        from,
		WebLink:     rec.WebLink,
		Score:       rec.TopScore(),
		Excerpt:     excerpt,
		Sensitivity: rec.Sensitivity,
	}
}

// TruncateAtWord cuts s at the last whitespace boundary at or before limit
// and appends the ellipsis marker. When s contains no whitespace within the
// limit it is cut hard at the limit. Strings within budget pass through
// unchanged.
func TruncateAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := -1
	for i, r := range s {
		if i > limit {
			break
		}
		if unicode.IsSpace(r) {
			cut = i
		}
	}
	if cut <= 0 {
		// No whitespace within budget; cut hard, backing up to a rune
		// boundary so the excerpt stays valid UTF-8.
		cut = limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}

	return strings.TrimRightFunc(s[:cut], unicode.IsSpace) + Ellipsis
}
