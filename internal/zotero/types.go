package zotero

// Creator is a Zotero creator in either single-field or two-field form.
type Creator struct {
	CreatorType string `json:"creatorType"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
}

// Tag is a Zotero item tag.
type Tag struct {
	Tag string `json:"tag"`
}

// Item is the data portion of a Zotero item. Only the fields the canonical
// record carries are modelled.
type Item struct {
	Key              string    `json:"key,omitempty"`
	Version          int       `json:"version,omitempty"`
	ItemType         string    `json:"itemType"`
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
	Tags             []Tag     `json:"tags,omitempty"`
	Extra            string    `json:"extra,omitempty"`
}

// itemEnvelope is one element of an items listing.
type itemEnvelope struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
	Data    Item   `json:"data"`
}

// writeFailure describes one rejected object in a write response.
type writeFailure struct {
	Key     string `json:"key"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeResponse is the body returned by a multi-object write.
type writeResponse struct {
	Success   map[string]string       `json:"success"`
	Unchanged map[string]string       `json:"unchanged"`
	Failed    map[string]writeFailure `json:"failed"`
}
