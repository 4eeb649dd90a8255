package domain

import "time"

// SchemaVersion is the current Listing schema. Listings stored with an older
// version are upgraded by ListingMigrations when read.
const SchemaVersion = 2

// DefaultCategory is the primary category of a listing with no categories.
const DefaultCategory = "miscellaneous"

// Category is one entry of the fixed category set.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var Categories = []Category{
	{"apartments", "Apartments"},
	{"subleases", "Subleases"},
	{"appliances", "Appliances"},
	{"bikes", "Bikes"},
	{"books", "Books"},
	{"cars", "Cars"},
	{"electronics", "Electronics"},
	{"employment", "Employment"},
	{"furniture", "Furniture"},
	{"miscellaneous", "Miscellaneous"},
	{"services", "Services"},
	{"wanted", "Wanted"},
}

var categoryLabels = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[c.Key] = c.Label
	}
	return m
}()

// CategoryLabel returns the display label for key and whether key is known.
func CategoryLabel(key string) (string, bool) {
	label, ok := categoryLabels[key]
	return label, ok
}

// Listing is a classified ad identified by its permalink.
//
// The keyword set used for search is not a field: it is always derived from
// Seller, Title, Body and Categories (see keyword.Normalizer.DeriveKeywords)
// and persisted by the storage adapter on every write.
type Listing struct {
	Permalink   string   `json:"permalink"`
	Seller      string   `json:"seller"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Price       int64    `json:"price"`        // cents
	PostingTime float64  `json:"posting_time"` // epoch seconds, 0 while a draft
	Categories  []string `json:"categories"`
	Photos      []string `json:"photos"`
	Thumbnails  []string `json:"thumbnails"`
	Version     int      `json:"version"`

	// Extra holds attributes from older schema versions that have no field
	// of their own. Migration steps read and clear them.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// NewListing returns an empty listing at the current schema version.
func NewListing(permalink string) *Listing {
	return &Listing{
		Permalink:  permalink,
		Categories: []string{},
		Photos:     []string{},
		Thumbnails: []string{},
		Version:    SchemaVersion,
	}
}

func (l *Listing) SchemaVersion() int     { return l.Version }
func (l *Listing) SetSchemaVersion(v int) { l.Version = v }

// PrimaryCategory is the first category, or DefaultCategory.
func (l *Listing) PrimaryCategory() string {
	if len(l.Categories) == 0 {
		return DefaultCategory
	}
	return l.Categories[0]
}

// IsPublished reports whether the listing has a posting time.
func (l *Listing) IsPublished() bool {
	return l.PostingTime > 0
}

// PostedAt converts PostingTime to a time.Time. Drafts return the zero time.
func (l *Listing) PostedAt() time.Time {
	if !l.IsPublished() {
		return time.Time{}
	}
	sec := int64(l.PostingTime)
	nsec := int64((l.PostingTime - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// EpochSeconds converts t to the PostingTime representation.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Validate checks the invariants a write must satisfy.
func (l *Listing) Validate() error {
	if l.Permalink == "" {
		return wrapInvalid("permalink is required")
	}
	if l.Price < 0 {
		return wrapInvalid("price must not be negative")
	}
	if l.PostingTime < 0 {
		return wrapInvalid("posting time must not be negative")
	}
	seen := make(map[string]struct{}, len(l.Categories))
	for _, c := range l.Categories {
		if _, ok := categoryLabels[c]; !ok {
			return wrapInvalid("unknown category " + c)
		}
		if _, dup := seen[c]; dup {
			return wrapInvalid("duplicate category " + c)
		}
		seen[c] = struct{}{}
	}
	if l.Version < 1 || l.Version > SchemaVersion {
		return wrapInvalid("unsupported schema version")
	}
	return nil
}
