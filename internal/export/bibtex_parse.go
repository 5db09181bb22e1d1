package export

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/matsen/wikisync/internal/citation"
)

// Entry is one parsed BibTeX entry.
type Entry struct {
	Type   string            // Lower-cased entry type, e.g. "article"
	Key    string            // Citation key
	Fields map[string]string // Lower-cased field name -> raw value (braces kept)
}

// BibTeXIndex indexes existing BibTeX entries for deduplication.
type BibTeXIndex struct {
	// Keys maps citation keys to true for existence check
	Keys map[string]bool
	// DOIs maps DOI values to citation keys
	DOIs map[string]string
}

// NewBibTeXIndex creates an empty BibTeX index.
func NewBibTeXIndex() *BibTeXIndex {
	return &BibTeXIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// Add records a record's key and DOI in the index.
func (idx *BibTeXIndex) Add(rec citation.Record) {
	if rec.Key != "" {
		idx.Keys[rec.Key] = true
	}
	if doi := normalizeDOI(rec.DOI); doi != "" && rec.Key != "" {
		idx.DOIs[doi] = rec.Key
	}
}

// HasEntry returns true if the entry already exists (by DOI or key).
// DOI is the primary match; citation key is the fallback if no DOI.
func (idx *BibTeXIndex) HasEntry(key, doi string) bool {
	// Primary: match by DOI if available
	if doi != "" {
		if _, exists := idx.DOIs[normalizeDOI(doi)]; exists {
			return true
		}
	}

	// Fallback: match by citation key
	return idx.Keys[key]
}

// IndexRecords builds an index over already-parsed records.
func IndexRecords(recs []citation.Record) *BibTeXIndex {
	idx := NewBibTeXIndex()
	for _, rec := range recs {
		idx.Add(rec)
	}
	return idx
}

// ParseBibTeXFile reads all entries of a .bib file as records.
// Returns no records (and no error) if the file doesn't exist.
func ParseBibTeXFile(path string) ([]citation.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading bib file: %w", err)
	}

	entries, err := ParseBibTeX(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	recs := make([]citation.Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, EntryToRecord(e))
	}
	return recs, nil
}

// ParseBibTeX parses BibTeX source into entries. @comment, @preamble and
// @string blocks are skipped; text outside entries is ignored.
func ParseBibTeX(src string) ([]Entry, error) {
	p := &bibParser{src: src}
	var entries []Entry

	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			break
		}
		p.pos += at + 1
		line := p.line()

		entryType := strings.ToLower(p.readWhile(isIdentChar))
		p.skipSpace()
		if p.eof() || (p.peek() != '{' && p.peek() != '(') {
			// A stray '@' (e.g. an email address in free text).
			continue
		}

		switch entryType {
		case "comment", "preamble", "string":
			if _, err := p.readDelimited(); err != nil {
				return nil, fmt.Errorf("line %d: @%s: %w", line, entryType, err)
			}
			continue
		}

		entry, err := p.readEntry(entryType)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// EntryToRecord maps a BibTeX entry onto the canonical record.
func EntryToRecord(e Entry) citation.Record {
	field := func(name string) string {
		return cleanField(e.Fields[name])
	}
	identifier := func(name string) string {
		return strings.TrimSpace(unescapeLatex(e.Fields[name]))
	}

	rec := citation.Record{
		Key:            e.Key,
		Title:          field("title"),
		Date:           field("year"),
		Venue:          field("journal"),
		Publisher:      field("publisher"),
		Volume:         field("volume"),
		Issue:          field("number"),
		Pages:          field("pages"),
		DOI:            identifier("doi"),
		ISBN:           identifier("isbn"),
		URL:            identifier("url"),
		ProvenanceNote: field("note"),
	}
	if rec.Venue == "" {
		rec.Venue = field("booktitle")
	}

	if authors := field("author"); authors != "" {
		for _, name := range strings.Split(authors, " and ") {
			if name = strings.TrimSpace(name); name != "" {
				rec.Creators = append(rec.Creators, citation.Creator{Role: "author", Name: name})
			}
		}
	}

	for _, kw := range strings.Split(field("keywords"), ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			rec.Tags = append(rec.Tags, kw)
		}
	}

	switch e.Type {
	case "article":
		rec.Type = citation.TypeArticle
	case "book":
		rec.Type = citation.TypeBook
	case "online", "electronic", "www":
		rec.Type = citation.TypeWebpage
	default:
		rec.Type = citation.TypeMisc
	}

	return rec
}

// cleanField unescapes a raw field value and collapses whitespace.
func cleanField(raw string) string {
	return strings.Join(strings.Fields(unescapeLatex(raw)), " ")
}

// normalizeDOI normalizes a DOI for comparison.
// Removes common prefixes like "https://doi.org/" and lowercases.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(doi)
}

// AppendToBibFile appends BibTeX content to a file.
func AppendToBibFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Ensure we start on a new line
	_, err = file.WriteString("\n" + content)
	return err
}

// WriteBibFile replaces path with the given records in BibTeX format.
func WriteBibFile(path string, recs []citation.Record) error {
	if err := os.WriteFile(path, []byte(ToBibTeXList(recs)), 0644); err != nil {
		return fmt.Errorf("writing bib file: %w", err)
	}
	return nil
}

// FileExporter writes the full record set to a .bib file after a run.
type FileExporter struct {
	Path string
}

// Export replaces the file with recs.
func (e FileExporter) Export(recs []citation.Record) error {
	return WriteBibFile(e.Path, recs)
}

type bibParser struct {
	src string
	pos int
}

func (p *bibParser) eof() bool  { return p.pos >= len(p.src) }
func (p *bibParser) peek() byte { return p.src[p.pos] }

func (p *bibParser) line() int {
	return strings.Count(p.src[:p.pos], "\n") + 1
}

func (p *bibParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *bibParser) readWhile(ok func(byte) bool) string {
	start := p.pos
	for !p.eof() && ok(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '-' || c == ':' || c == '.' || c == '+' || c == '/' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// readDelimited reads a {...} or (...) block starting at the opening
// delimiter and returns its inner text.
func (p *bibParser) readDelimited() (string, error) {
	open := p.peek()
	closer := byte('}')
	if open == '(' {
		closer = ')'
	}
	depth := 0
	start := p.pos + 1
	for ; !p.eof(); p.pos++ {
		switch c := p.peek(); {
		case c == '\\':
			p.pos++ // skip escaped character
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				inner := p.src[start:p.pos]
				p.pos++
				return inner, nil
			}
		}
	}
	return "", fmt.Errorf("unterminated block")
}

func (p *bibParser) readEntry(entryType string) (Entry, error) {
	closer := byte('}')
	if p.peek() == '(' {
		closer = ')'
	}
	p.pos++ // opening delimiter

	p.skipSpace()
	key := strings.TrimSpace(p.readWhile(func(c byte) bool { return c != ',' && c != closer }))
	entry := Entry{Type: entryType, Key: key, Fields: make(map[string]string)}

	for {
		p.skipSpace()
		if p.eof() {
			return entry, fmt.Errorf("entry %q: unexpected end of input", key)
		}
		switch p.peek() {
		case closer:
			p.pos++
			return entry, nil
		case ',':
			p.pos++
			continue
		}

		name := strings.ToLower(p.readWhile(isIdentChar))
		if name == "" {
			return entry, fmt.Errorf("entry %q: expected field name at offset %d", key, p.pos)
		}
		p.skipSpace()
		if p.eof() || p.peek() != '=' {
			return entry, fmt.Errorf("entry %q: expected '=' after %s", key, name)
		}
		p.pos++

		value, err := p.readValue(closer)
		if err != nil {
			return entry, fmt.Errorf("entry %q field %s: %w", key, name, err)
		}
		entry.Fields[name] = value
	}
}

// readValue reads a field value: {braced}, "quoted" or a bare token, with
// optional # concatenation.
func (p *bibParser) readValue(closer byte) (string, error) {
	var parts []string
	for {
		p.skipSpace()
		if p.eof() {
			return "", fmt.Errorf("unexpected end of input")
		}

		switch p.peek() {
		case '{':
			inner, err := p.readDelimited()
			if err != nil {
				return "", err
			}
			parts = append(parts, inner)
		case '"':
			inner, err := p.readQuoted()
			if err != nil {
				return "", err
			}
			parts = append(parts, inner)
		default:
			bare := p.readWhile(func(c byte) bool {
				return c != ',' && c != closer && c != '#' && !unicode.IsSpace(rune(c))
			})
			parts = append(parts, bare)
		}

		p.skipSpace()
		if p.eof() || p.peek() != '#' {
			return strings.Join(parts, ""), nil
		}
		p.pos++
	}
}

func (p *bibParser) readQuoted() (string, error) {
	p.pos++ // opening quote
	start := p.pos
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch p.peek() {
		case '\\':
			p.pos++
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				inner := p.src[start:p.pos]
				p.pos++
				return inner, nil
			}
		}
	}
	return "", fmt.Errorf("unterminated quoted value")
}
