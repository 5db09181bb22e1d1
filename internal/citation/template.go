package citation

import (
	"regexp"
	"strings"
)

// Canonical template field names, following Zotero's item field names.
const (
	FieldTitle            = "title"
	FieldCreators         = "creators"
	FieldDate             = "date"
	FieldPublicationTitle = "publicationTitle"
	FieldVolume           = "volume"
	FieldIssue            = "issue"
	FieldPages            = "pages"
	FieldDOI              = "DOI"
	FieldURL              = "url"
	FieldPublisher        = "publisher"
	FieldISBN             = "ISBN"
)

// templateKeys maps lower-cased template parameter names to canonical fields.
// Parameters not listed here are dropped.
var templateKeys = map[string]string{
	"title":      FieldTitle,
	"author":     FieldCreators,
	"year":       FieldDate,
	"date":       FieldDate,
	"journal":    FieldPublicationTitle,
	"work":       FieldPublicationTitle,
	"newspaper":  FieldPublicationTitle,
	"magazine":   FieldPublicationTitle,
	"periodical": FieldPublicationTitle,
	"volume":     FieldVolume,
	"issue":      FieldIssue,
	"number":     FieldIssue,
	"pages":      FieldPages,
	"page":       FieldPages,
	"doi":        FieldDOI,
	"url":        FieldURL,
	"publisher":  FieldPublisher,
	"isbn":       FieldISBN,
}

// TemplateFields holds the recognized parameters of one cite template.
type TemplateFields struct {
	Title            string    `json:"title,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	Date             string    `json:"date,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Volume           string    `json:"volume,omitempty"`
	Issue            string    `json:"issue,omitempty"`
	Pages            string    `json:"pages,omitempty"`
	DOI              string    `json:"DOI,omitempty"`
	URL              string    `json:"url,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	ISBN             string    `json:"ISBN,omitempty"`
}

// set assigns value to a canonical field. The first non-empty value for a
// field wins, so "year" and a later "date" do not overwrite each other.
func (f *TemplateFields) set(field, value string) {
	var dst *string
	switch field {
	case FieldCreators:
		if len(f.Creators) == 0 {
			f.Creators = []Creator{{Role: "author", Name: value}}
		}
		return
	case FieldTitle:
		dst = &f.Title
	case FieldDate:
		dst = &f.Date
	case FieldPublicationTitle:
		dst = &f.PublicationTitle
	case FieldVolume:
		dst = &f.Volume
	case FieldIssue:
		dst = &f.Issue
	case FieldPages:
		dst = &f.Pages
	case FieldDOI:
		dst = &f.DOI
	case FieldURL:
		dst = &f.URL
	case FieldPublisher:
		dst = &f.Publisher
	case FieldISBN:
		dst = &f.ISBN
	default:
		return
	}
	if *dst == "" {
		*dst = value
	}
}

var (
	// wikiLinkPattern matches [[Target]] and [[Target|Label]].
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)
	quoteRunPattern = regexp.MustCompile(`'{2,}`)
)

// ParseTemplate parses a {{cite ...}} invocation into its canonical fields.
// Field separators inside nested {{...}} or [[...]] spans are not boundaries.
func ParseTemplate(raw string) TemplateFields {
	var fields TemplateFields

	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "{{")
	body = strings.TrimSuffix(body, "}}")

	segments := splitTopLevel(body, '|')
	if len(segments) < 2 {
		return fields
	}

	// segments[0] is the template name, e.g. "cite journal".
	for _, seg := range segments[1:] {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		field, known := templateKeys[key]
		if !known {
			continue
		}
		value = cleanValue(value)
		if value == "" {
			continue
		}
		fields.set(field, value)
	}

	return fields
}

// splitTopLevel splits s on sep, ignoring separators nested inside {{...}}
// or [[...]].
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"), strings.HasPrefix(s[i:], "[["):
			depth++
			i += 2
		case strings.HasPrefix(s[i:], "}}"), strings.HasPrefix(s[i:], "]]"):
			if depth > 0 {
				depth--
			}
			i += 2
		case s[i] == sep && depth == 0:
			parts = append(parts, s[last:i])
			i++
			last = i
		default:
			i++
		}
	}
	return append(parts, s[last:])
}

// cleanValue strips wiki markup from a template value and collapses whitespace.
func cleanValue(v string) string {
	v = wikiLinkPattern.ReplaceAllStringFunc(v, func(link string) string {
		m := wikiLinkPattern.FindStringSubmatch(link)
		if m[2] != "" {
			return m[2]
		}
		return m[1]
	})
	v = quoteRunPattern.ReplaceAllString(v, "")
	return strings.Join(strings.Fields(v), " ")
}
