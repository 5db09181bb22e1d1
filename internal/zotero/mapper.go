package zotero

import (
	"sort"
	"strings"

	"github.com/matsen/wikisync/internal/citation"
)

// Zotero item types the canonical record types map onto.
const (
	ItemTypeJournalArticle = "journalArticle"
	ItemTypeBook           = "book"
	ItemTypeWebpage        = "webpage"
	ItemTypeDocument       = "document"
)

// citationKeyPrefix marks the citation key line in the extra field, the
// convention Better BibTeX also reads.
const citationKeyPrefix = "Citation Key: "

// itemTypeFor maps a record type to a Zotero item type.
func itemTypeFor(t citation.RecordType) string {
	switch t {
	case citation.TypeArticle:
		return ItemTypeJournalArticle
	case citation.TypeBook:
		return ItemTypeBook
	case citation.TypeWebpage:
		return ItemTypeWebpage
	default:
		return ItemTypeDocument
	}
}

// recordTypeFor maps a Zotero item type back to a record type.
func recordTypeFor(itemType string) citation.RecordType {
	switch itemType {
	case ItemTypeJournalArticle, "magazineArticle", "newspaperArticle":
		return citation.TypeArticle
	case ItemTypeBook, "bookSection":
		return citation.TypeBook
	case ItemTypeWebpage, "blogPost", "forumPost":
		return citation.TypeWebpage
	default:
		return citation.TypeMisc
	}
}

// ToItem converts a record to a Zotero item. Fields the target item type
// does not define are left out, since the API rejects them.
func ToItem(rec citation.Record) Item {
	item := Item{
		ItemType: itemTypeFor(rec.Type),
		Title:    rec.Title,
		Date:     rec.Date,
		URL:      rec.URL,
		Extra:    buildExtra(rec.Key, rec.ProvenanceNote),
	}

	for _, c := range rec.Creators {
		role := c.Role
		if role == "" {
			role = "author"
		}
		item.Creators = append(item.Creators, Creator{CreatorType: role, Name: c.Name})
	}
	for _, t := range rec.Tags {
		item.Tags = append(item.Tags, Tag{Tag: t})
	}

	switch item.ItemType {
	case ItemTypeJournalArticle:
		item.PublicationTitle = rec.Venue
		item.Volume = rec.Volume
		item.Issue = rec.Issue
		item.Pages = rec.Pages
		item.DOI = rec.DOI
	case ItemTypeBook:
		item.Publisher = rec.Publisher
		item.Volume = rec.Volume
		item.ISBN = rec.ISBN
	case ItemTypeDocument:
		item.Publisher = rec.Publisher
	}

	return item
}

// FromItem converts a Zotero item to a record. The citation key and
// provenance note are recovered from the extra field.
func FromItem(item Item) citation.Record {
	key, note := parseExtra(item.Extra)
	if key == "" {
		key = item.Key
	}

	rec := citation.Record{
		Key:            key,
		Type:           recordTypeFor(item.ItemType),
		Title:          item.Title,
		Date:           item.Date,
		Venue:          item.PublicationTitle,
		Publisher:      item.Publisher,
		Volume:         item.Volume,
		Issue:          item.Issue,
		Pages:          item.Pages,
		DOI:            item.DOI,
		ISBN:           item.ISBN,
		URL:            item.URL,
		ProvenanceNote: note,
	}

	for _, c := range item.Creators {
		name := c.Name
		if name == "" {
			name = strings.TrimSpace(c.FirstName + " " + c.LastName)
		}
		if name == "" {
			continue
		}
		rec.Creators = append(rec.Creators, citation.Creator{Role: c.CreatorType, Name: name})
	}

	for _, t := range item.Tags {
		if t.Tag != "" {
			rec.Tags = append(rec.Tags, t.Tag)
		}
	}
	sort.Strings(rec.Tags)

	return rec
}

func buildExtra(key, note string) string {
	var lines []string
	if key != "" {
		lines = append(lines, citationKeyPrefix+key)
	}
	if note != "" {
		lines = append(lines, note)
	}
	return strings.Join(lines, "\n")
}

func parseExtra(extra string) (key, note string) {
	var rest []string
	for _, line := range strings.Split(extra, "\n") {
		if k, ok := strings.CutPrefix(line, citationKeyPrefix); ok && key == "" {
			key = strings.TrimSpace(k)
			continue
		}
		if strings.TrimSpace(line) != "" {
			rest = append(rest, line)
		}
	}
	return key, strings.Join(rest, "\n")
}
