package citation

import "strings"

// Matches reports whether a contains b or b contains a, ignoring case and
// differences in whitespace. Empty strings never match.
// Matches(a, b) == Matches(b, a).
func Matches(a, b string) bool {
	a = strings.ToLower(collapseSpace(a))
	b = strings.ToLower(collapseSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Exists reports whether candidate duplicates any record in existing.
//
// The candidate title is compared against each existing record's title, then
// its joined creators, venue and provenance note, by two-way substring
// containment. Very short titles can produce false positives.
func Exists(candidate Record, existing []Record) bool {
	_, found := FindMatch(candidate, existing)
	return found
}

// FindMatch returns the index of the first existing record that matches
// candidate, and whether one was found.
func FindMatch(candidate Record, existing []Record) (int, bool) {
	title := candidate.Title
	if strings.TrimSpace(title) == "" {
		return -1, false
	}
	for i, rec := range existing {
		if Matches(title, rec.Title) {
			return i, true
		}
		for _, field := range matchFields(rec) {
			if Matches(title, field) {
				return i, true
			}
		}
	}
	return -1, false
}

// matchFields returns the secondary free-text fields of a stored record.
func matchFields(rec Record) []string {
	return []string{
		strings.Join(rec.CreatorNames(), " and "),
		rec.Venue,
		rec.ProvenanceNote,
	}
}
