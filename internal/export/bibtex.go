// Package export converts canonical records to and from BibTeX.
package export

import (
	"fmt"
	"strings"

	"github.com/matsen/wikisync/internal/citation"
)

// ToBibTeX converts a record to a BibTeX entry.
func ToBibTeX(rec citation.Record) string {
	entryType := determineEntryType(rec)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, rec.Key))

	// Authors
	if names := rec.CreatorNames(); len(names) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(strings.Join(names, " and "))))
	}

	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(rec.Title)))

	if rec.Venue != "" {
		b.WriteString(fmt.Sprintf("  journal = {%s},\n", escapeLatex(rec.Venue)))
	}
	if rec.Publisher != "" {
		b.WriteString(fmt.Sprintf("  publisher = {%s},\n", escapeLatex(rec.Publisher)))
	}
	if rec.Date != "" {
		b.WriteString(fmt.Sprintf("  year = {%s},\n", escapeLatex(rec.Date)))
	}
	if rec.Volume != "" {
		b.WriteString(fmt.Sprintf("  volume = {%s},\n", escapeLatex(rec.Volume)))
	}
	if rec.Issue != "" {
		b.WriteString(fmt.Sprintf("  number = {%s},\n", escapeLatex(rec.Issue)))
	}
	if rec.Pages != "" {
		b.WriteString(fmt.Sprintf("  pages = {%s},\n", escapeLatex(rec.Pages)))
	}

	// Identifiers keep everything but braces and backslashes verbatim
	if rec.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", escapeIdentifier(rec.DOI)))
	}
	if rec.ISBN != "" {
		b.WriteString(fmt.Sprintf("  isbn = {%s},\n", escapeIdentifier(rec.ISBN)))
	}
	if rec.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", escapeIdentifier(rec.URL)))
	}

	if rec.ProvenanceNote != "" {
		b.WriteString(fmt.Sprintf("  note = {%s},\n", escapeLatex(rec.ProvenanceNote)))
	}
	if len(rec.Tags) > 0 {
		b.WriteString(fmt.Sprintf("  keywords = {%s},\n", escapeLatex(strings.Join(rec.Tags, ", "))))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple records to BibTeX format.
func ToBibTeXList(recs []citation.Record) string {
	var entries []string
	for _, rec := range recs {
		entries = append(entries, ToBibTeX(rec))
	}
	return strings.Join(entries, "\n")
}

// determineEntryType returns the BibTeX entry type for a record.
func determineEntryType(rec citation.Record) string {
	switch rec.Type {
	case citation.TypeArticle:
		return "article"
	case citation.TypeBook:
		return "book"
	default:
		// Webpages and unknown sources; url and note carry the detail.
		return "misc"
	}
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Single pass: backslashes emitted here are not escaped again.
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}

type latexSymbol struct{ macro, text string }

// latexSymbols maps the symbol macros escapeLatex emits back to their text.
var latexSymbols = []latexSymbol{
	{`\textbackslash{}`, `\`},
	{`\textasciitilde{}`, "~"},
	{`\textasciicircum{}`, "^"},
}

// unescapeLatex reverses escapeLatex and drops the grouping braces BibTeX
// uses to protect capitalization, e.g. "{DNA} \& {RNA}" -> "DNA & RNA".
func unescapeLatex(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '\\':
			if sym, ok := symbolAt(s[i:]); ok {
				b.WriteString(sym.text)
				i += len(sym.macro)
				continue
			}
			if i+1 < len(s) && strings.IndexByte(`&%$#_{}`, s[i+1]) >= 0 {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			b.WriteByte(ch)
		case ch == '{' || ch == '}':
			// grouping brace
		default:
			b.WriteByte(ch)
		}
		i++
	}
	return b.String()
}

func symbolAt(s string) (latexSymbol, bool) {
	for _, sym := range latexSymbols {
		if strings.HasPrefix(s, sym.macro) {
			return sym, true
		}
	}
	return latexSymbol{}, false
}

// escapeIdentifier protects the characters that would unbalance a braced
// BibTeX value while leaving identifiers such as URLs otherwise verbatim.
func escapeIdentifier(s string) string {
	return strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"{", `\{`,
		"}", `\}`,
	).Replace(s)
}
