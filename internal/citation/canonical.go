package citation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Title length limits, in characters.
const (
	MaxTitleLen        = 200
	FallbackTitleLen   = 100
	TruncationEllipsis = "..."
)

const (
	provenanceNoteFmt = "Extracted from wiki citation: %s; cited on: %s"
	kindTagPrefix     = "wiki:"
)

var (
	// nameYearPattern matches "Smith, J. (2020)" or "Jane Doe (2019a)" at the
	// start of an inline reference.
	nameYearPattern = regexp.MustCompile(`^([\p{Lu}][^()\n]{0,80}?)\s*\((\d{4})[a-z]?\)`)
	yearPattern     = regexp.MustCompile(`\b(\d{4})\b`)
)

// Canonicalize builds the canonical record for one citation. For template
// citations, fields carries the parsed parameters; when it is nil the
// template text is parsed here.
func Canonicalize(c RawCitation, fields *TemplateFields) Record {
	rec := Record{
		Key:            GenerateKey(c.Text),
		Tags:           normalizeTags([]string{SourceTag, kindTagPrefix + string(c.Kind)}),
		ProvenanceNote: fmt.Sprintf(provenanceNoteFmt, c.Kind, c.Origin),
	}

	switch c.Kind {
	case KindTemplate:
		if fields == nil {
			parsed := ParseTemplate(c.Text)
			fields = &parsed
		}
		applyTemplateFields(&rec, *fields)
		if rec.Title == "" {
			rec.Title = Truncate(collapseSpace(c.Text), MaxTitleLen)
		}

	case KindInlineReference:
		if m := nameYearPattern.FindStringSubmatch(c.Text); m != nil {
			name := strings.TrimSpace(strings.TrimRight(m[1], ",.;: "))
			if name != "" {
				rec.Creators = []Creator{{Role: "author", Name: name}}
				rec.Date = m[2]
			}
		}
		rec.Title = Truncate(c.Text, MaxTitleLen)

	case KindExternalLink:
		rec.Title = Truncate(c.Text, MaxTitleLen)
		rec.URL = c.URL
	}

	if rec.Title == "" {
		rec.Title = Truncate(collapseSpace(c.Text), FallbackTitleLen)
	}
	rec.Type = deriveType(rec, c.Kind)
	return rec
}

func applyTemplateFields(rec *Record, f TemplateFields) {
	rec.Title = f.Title
	rec.Creators = append([]Creator(nil), f.Creators...)
	rec.Date = yearOf(f.Date)
	rec.Venue = f.PublicationTitle
	rec.Publisher = f.Publisher
	rec.Volume = f.Volume
	rec.Issue = f.Issue
	rec.Pages = f.Pages
	rec.DOI = f.DOI
	rec.ISBN = f.ISBN
	rec.URL = f.URL
}

// yearOf returns the four-digit year in a date value, or the value unchanged
// if it contains none.
func yearOf(date string) string {
	if m := yearPattern.FindStringSubmatch(date); m != nil {
		return m[1]
	}
	return date
}

// Truncate shortens s to at most max characters, appending "..." when it cuts.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + TruncationEllipsis
}
