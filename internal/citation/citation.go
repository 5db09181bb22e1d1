// Package citation defines the domain types for wiki citations and the
// canonical bibliographic records they are normalized into.
package citation

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
)

// Kind identifies the syntactic form a citation was found in.
type Kind string

const (
	KindInlineReference Kind = "inline_reference" // <ref>...</ref>
	KindTemplate        Kind = "template"         // {{cite ...}}
	KindExternalLink    Kind = "external_link"    // [https://... label]
)

// RawCitation is one citation span found in page markup.
type RawCitation struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`          // Cleaned content (label for links, raw body for templates)
	Origin string `json:"origin"`        // Page the citation was extracted from
	URL    string `json:"url,omitempty"` // Link target, external_link only
}

// RecordType is the derived bibliographic type of a record.
type RecordType string

const (
	TypeArticle RecordType = "article"
	TypeBook    RecordType = "book"
	TypeWebpage RecordType = "webpage"
	TypeMisc    RecordType = "misc"
)

// SourceTag is carried by every record produced from a wiki page.
const SourceTag = "source:wiki"

// Creator is a contributor to a cited work.
type Creator struct {
	Role string `json:"role,omitempty"` // "author"
	Name string `json:"name"`
}

// Record is the canonical, store-agnostic representation of one citation.
type Record struct {
	Key            string     `json:"key"`
	Type           RecordType `json:"type"`
	Title          string     `json:"title"`
	Creators       []Creator  `json:"creators,omitempty"`
	Date           string     `json:"date,omitempty"`
	Venue          string     `json:"venue,omitempty"`
	Publisher      string     `json:"publisher,omitempty"`
	Volume         string     `json:"volume,omitempty"`
	Issue          string     `json:"issue,omitempty"`
	Pages          string     `json:"pages,omitempty"`
	DOI            string     `json:"doi,omitempty"`
	ISBN           string     `json:"isbn,omitempty"`
	URL            string     `json:"url,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	ProvenanceNote string     `json:"note,omitempty"`
}

// CreatorNames returns the creator names in order.
func (r Record) CreatorNames() []string {
	names := make([]string, 0, len(r.Creators))
	for _, c := range r.Creators {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// HasTag reports whether the record carries tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// deriveType applies the type rules: article iff a venue is present, book iff
// a publisher is present without a venue.
func deriveType(r Record, kind Kind) RecordType {
	switch {
	case r.Venue != "":
		return TypeArticle
	case r.Publisher != "":
		return TypeBook
	case kind == KindExternalLink:
		return TypeWebpage
	default:
		return TypeMisc
	}
}

// GenerateKey returns the deterministic citation key for a citation text.
// The same text always yields the same key, so reruns are idempotent.
func GenerateKey(text string) string {
	sum := md5.Sum([]byte(text))
	return "wiki_" + hex.EncodeToString(sum[:])[:8]
}

// normalizeTags returns a sorted, de-duplicated tag set.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
