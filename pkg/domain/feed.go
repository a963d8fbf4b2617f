package domain

// Feed is a single configured feed with all group defaults resolved.
// Built once at startup and never mutated afterwards.
type Feed struct {
	URL            string
	Name           string // sender display name, empty to use webhook default
	Avatar         string // sender avatar URL, empty to use webhook default
	IncludeSummary bool
	IncludeImage   bool
}

// ParsedFeed is the result of fetching and parsing a feed URL
type ParsedFeed struct {
	Title string
	Link  string
	Items []ParsedItem
}
