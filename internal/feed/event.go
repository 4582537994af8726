package feed

import (
	"context"
	"time"

	"roadside-portal/internal/storage"
)

// EventType distinguishes inserts from updates on the jobs table
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// Event announces a change to a job and carries the full new record
type Event struct {
	Type      EventType    `json:"event_type"`
	Job       *storage.Job `json:"new"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher delivers change events to the feed
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler receives change events in delivery order
type Handler func(Event)

// Subscription is a live registration on the feed
type Subscription interface {
	// Cancel stops delivery. No handler call is in flight or started once Cancel returns.
	Cancel()
}

// Subscriber registers handlers on the feed
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) (Subscription, error)
}
