package storage

import "time"

// Record is an archived notification.
type Record struct {
	ID         string
	AppID      string
	Title      string
	Subtitle   string
	Body       string
	Delivered  time.Time
	Source     string // "history", "banner"
	HasImage   bool
	CapturedAt time.Time
}

// Image holds the attachment bytes of a record.
type Image struct {
	NotificationID string
	Data           []byte
}

// SearchQuery defines filters for searching the archive.
type SearchQuery struct {
	Query  string
	Apps   []string
	Source string
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// Exclusion is an app rule that keeps notifications out of the archive.
type Exclusion struct {
	RuleType  string // "app" or "regex"
	RuleValue string
	Reason    string
	IsDefault bool
}

// Stats holds aggregate statistics about the archive.
type Stats struct {
	TotalNotifications int64
	TotalImages        int64
	Oldest             time.Time
	Newest             time.Time
	DatabaseSizeBytes  int64
	TopApps            []AppCount
}

// AppCount pairs an app identifier with its notification count.
type AppCount struct {
	AppID string
	Count int64
}
