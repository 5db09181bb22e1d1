package citation

import "testing"

func TestExists_NoveltyDecision(t *testing.T) {
	existing := []Record{{Key: "k1", Title: "Deep Learning Survey"}}

	tests := []struct {
		title string
		want  bool
	}{
		{"A Deep Learning Survey of Methods", true},
		{"deep learning", true},
		{"DEEP LEARNING SURVEY", true},
		{"Unrelated Paper XYZ", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Exists(Record{Title: tt.title}, existing)
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestMatches_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Deep Learning Survey", "A Deep Learning Survey of Methods"},
		{"abc", "ABC"},
		{"abc", "xyz"},
		{"", "anything"},
		{"  padded  ", "Padded"},
		{"line one\nline  two", "Line one line two"},
		{"Évolution", "évolution des espèces"},
	}

	for _, p := range pairs {
		if Matches(p[0], p[1]) != Matches(p[1], p[0]) {
			t.Errorf("Matches(%q, %q) != Matches(%q, %q)", p[0], p[1], p[1], p[0])
		}
	}
}

func TestMatches_IgnoresWhitespaceDifferences(t *testing.T) {
	if !Matches("see the survey of\nuniversal  methods", "See the survey of universal methods") {
		t.Error("Matches() = false for titles differing only in whitespace")
	}
}

func TestMatches_EmptyNeverMatches(t *testing.T) {
	if Matches("", "") {
		t.Error("Matches(\"\", \"\") = true, want false")
	}
	if Matches("title", "   ") {
		t.Error("Matches with blank field = true, want false")
	}
}

func TestExists_SecondaryFields(t *testing.T) {
	tests := []struct {
		name     string
		existing Record
		title    string
	}{
		{
			name:     "creators",
			existing: Record{Title: "Something else", Creators: []Creator{{Name: "Jane Doe"}, {Name: "John Roe"}}},
			title:    "Jane Doe and John Roe",
		},
		{
			name:     "venue",
			existing: Record{Title: "Something else", Venue: "Proceedings of the Royal Society"},
			title:    "Royal Society",
		},
		{
			name:     "provenance note",
			existing: Record{Title: "Something else", ProvenanceNote: "Imported by hand from the Smith lab wiki"},
			title:    "Smith lab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Exists(Record{Title: tt.title}, []Record{tt.existing}) {
				t.Errorf("Exists(%q) = false, want match on %s", tt.title, tt.name)
			}
		})
	}
}

func TestExists_EmptyExistingFieldsDoNotMatch(t *testing.T) {
	existing := []Record{{Key: "k", Title: "", Venue: "", ProvenanceNote: ""}}
	if Exists(Record{Title: "Any candidate"}, existing) {
		t.Error("Exists() matched against empty fields")
	}
}

func TestExists_EmptyCollection(t *testing.T) {
	if Exists(Record{Title: "Anything"}, nil) {
		t.Error("Exists() = true for empty collection")
	}
}

func TestFindMatch_ReturnsFirst(t *testing.T) {
	existing := []Record{
		{Key: "a", Title: "Nothing relevant"},
		{Key: "b", Title: "Graph Theory"},
		{Key: "c", Title: "Graph Theory Revisited"},
	}

	idx, found := FindMatch(Record{Title: "graph theory"}, existing)
	if !found || idx != 1 {
		t.Errorf("FindMatch() = (%d, %v), want (1, true)", idx, found)
	}
}
