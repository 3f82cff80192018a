package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Category is the coarse label assigned to a scraped news item.
type Category string

const (
	CategoryMeeting      Category = "meeting"
	CategoryAnnouncement Category = "announcement"
	CategoryAlert        Category = "alert"
	CategoryGeneral      Category = "general"
)

// SourceName identifies the upstream a news item came from.
type SourceName string

const (
	SourceISD  SourceName = "ISD"
	SourceCity SourceName = "City"
)

// Provenance tags whether a feed response came from live scraping.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceFallback Provenance = "fallback"
)

// NewsItem is a scraped, coarsely classified mention of a civic event.
// Items are built once per aggregation run and never mutated.
type NewsItem struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Title     string     `json:"title" yaml:"title" validate:"required"`
	Date      string     `json:"date,omitempty" yaml:"date,omitempty"`
	Source    SourceName `json:"source" yaml:"source" validate:"required,oneof=ISD City"`
	SourceURL string     `json:"sourceUrl" yaml:"sourceUrl" validate:"required,url"`
	Category  Category   `json:"category" yaml:"category" validate:"required,oneof=meeting announcement alert general"`
}

// newsNamespace scopes content-derived item ids.
var newsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("civic-events/news-item"))

// NewsItemID builds an id from a source tag, the item's extraction index and
// a hash of its content. The (tag, index) pair keeps ids unique within one
// response; the hash keeps them stable for identical upstream content.
func NewsItemID(tag string, index int, sourceURL, title, date string) string {
	h := uuid.NewSHA1(newsNamespace, []byte(sourceURL+"|"+title+"|"+date))
	return fmt.Sprintf("%s-%d-%s", tag, index, h.String()[:8])
}
