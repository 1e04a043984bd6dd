package types

type BrowseEvent struct {
	Path          string `json:"path"`
	CategoryId    string `json:"category_id,omitempty"`
	SubCategoryId string `json:"sub_category_id,omitempty"`
	Query         string `json:"query,omitempty"`
	Total         int    `json:"total"`
	Page          int    `json:"page"`
	Error         string `json:"error,omitempty"`
}

type Tracking interface {
	TrackSession(sessionId string, userAgent string, ip string)
	TrackBrowse(sessionId string, event BrowseEvent)
	Close() error
}
