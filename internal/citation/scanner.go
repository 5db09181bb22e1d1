package citation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Minimum lengths below which a span is treated as noise.
const (
	MinInlineReferenceLen = 10 // <ref> content must be longer than this
	MinLinkLabelLen       = 5  // external link labels must be longer than this
)

var (
	// refOpenPattern matches <ref>, <ref name="x"> and self-closing <ref name="x" />.
	refOpenPattern  = regexp.MustCompile(`(?i)<ref(\s[^>]*)?>`)
	refClosePattern = regexp.MustCompile(`(?i)</ref\s*>`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)

	citeOpenPattern = regexp.MustCompile(`(?i)\{\{cite\s`)

	// linkPattern matches [https://example.org some label].
	linkPattern = regexp.MustCompile(`\[(https?://[^\s\]]+)\s+([^\]]+)\]`)
)

// Scan extracts every recognizable citation from wiki markup. Inline
// references come first, then cite templates, then labelled external links;
// within each group citations appear in document order. Scan has no side
// effects, so calling it again on the same text yields the same result.
func Scan(text, origin string) []RawCitation {
	var out []RawCitation
	out = append(out, scanInlineReferences(text, origin)...)
	out = append(out, scanTemplates(text, origin)...)
	out = append(out, scanExternalLinks(text, origin)...)
	return out
}

func scanInlineReferences(text, origin string) []RawCitation {
	var out []RawCitation
	pos := 0
	for pos < len(text) {
		open := refOpenPattern.FindStringSubmatchIndex(text[pos:])
		if open == nil {
			break
		}
		bodyStart := pos + open[1]

		// <ref name="x" /> reuses an earlier reference and has no body.
		if open[2] >= 0 && strings.HasSuffix(strings.TrimSpace(text[pos+open[2]:pos+open[3]]), "/") {
			pos = bodyStart
			continue
		}

		closing := refClosePattern.FindStringIndex(text[bodyStart:])
		if closing == nil {
			break
		}

		body := text[bodyStart : bodyStart+closing[0]]
		pos = bodyStart + closing[1]

		clean := collapseSpace(tagPattern.ReplaceAllString(body, ""))
		if utf8.RuneCountInString(clean) <= MinInlineReferenceLen {
			continue
		}
		out = append(out, RawCitation{Kind: KindInlineReference, Text: clean, Origin: origin})
	}
	return out
}

func scanTemplates(text, origin string) []RawCitation {
	var out []RawCitation
	pos := 0
	for pos < len(text) {
		loc := citeOpenPattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		end := closeTemplate(text, start)
		if end < 0 {
			// Unbalanced; look for the next invocation after this opener.
			pos = start + 2
			continue
		}
		raw := strings.TrimSpace(text[start:end])
		out = append(out, RawCitation{Kind: KindTemplate, Text: raw, Origin: origin})
		pos = end
	}
	return out
}

// closeTemplate returns the offset just past the "}}" that balances the "{{"
// at start, or -1 if the template never closes.
func closeTemplate(text string, start int) int {
	depth := 0
	for i := start; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "{{"):
			depth++
			i += 2
		case strings.HasPrefix(text[i:], "}}"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}

// collapseSpace trims s and reduces every whitespace run to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func scanExternalLinks(text, origin string) []RawCitation {
	var out []RawCitation
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		label := collapseSpace(m[2])
		if utf8.RuneCountInString(label) <= MinLinkLabelLen {
			continue
		}
		out = append(out, RawCitation{Kind: KindExternalLink, Text: label, Origin: origin, URL: m[1]})
	}
	return out
}
