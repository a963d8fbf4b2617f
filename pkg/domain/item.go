package domain

import "time"

// ParsedItem is a single entry from a parsed feed
type ParsedItem struct {
	GUID        string
	Link        string
	Title       string
	Description string // summary HTML as provided by the feed
	Content     string // rich content HTML, often fuller than Description
	Published   time.Time
	Media       []MediaItem
}

// MediaItem is one media:content element attached to an entry
type MediaItem struct {
	URL    string
	Medium string // "image", "thumbnail", "video" etc., may be empty
	Height int
	Width  int
}

// IsImage reports whether the media item can be attached as a picture
func (m MediaItem) IsImage() bool {
	return m.Medium == "image" || m.Medium == "thumbnail"
}
