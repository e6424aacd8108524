// Package notification holds the canonical captured-notification type and
// the collaborator interfaces the capture core hands items to.
package notification

import (
	"context"
	"time"
)

// Source names the detection channel that produced a Notification.
type Source string

const (
	SourceHistory Source = "history" // notification history database
	SourceBanner  Source = "banner"  // accessibility tree of the banner renderer
)

// Notification is a single captured notification. History items carry the
// record's ID and delivery time; banner sightings carry neither.
type Notification struct {
	ID        string
	AppID     string
	Title     string
	Subtitle  string
	Body      string
	Timestamp time.Time
	Image     []byte
	Source    Source
}

// Empty reports whether the notification has neither title nor body.
func (n Notification) Empty() bool {
	return n.Title == "" && n.Body == ""
}

// Saver persists captured notifications. Implementations must be idempotent
// on ID: the same record may be submitted again after a restart.
type Saver interface {
	SaveAll(ctx context.Context, items []Notification) error
}

// Shower presents a notification to the user. Fire-and-forget.
type Shower interface {
	Show(item Notification)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, items []Notification) error

func (f SaverFunc) SaveAll(ctx context.Context, items []Notification) error { return f(ctx, items) }

// ShowerFunc adapts a function to Shower.
type ShowerFunc func(item Notification)

func (f ShowerFunc) Show(item Notification) { f(item) }
