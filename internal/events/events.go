// Package events publishes a best-effort change feed for document mutations.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nuid"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes one committed mutation of a stored document.
type Event struct {
	EventID    string    `json:"event_id"`
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subject returns the feed subject for a collection.
func Subject(collection string) string {
	return "blog.event." + collection
}

type PublishFunc func(subject string, payload []byte) error

// Feed emits events after successful writes. Publishing is best-effort: a
// failed publish is logged and never surfaced to the request that caused it.
type Feed struct {
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string
}

func NewFeed(publish PublishFunc) *Feed {
	return &Feed{
		Publish: publish,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

// Nop returns a feed that drops every event. Used when no broker is
// configured.
func Nop() *Feed {
	return NewFeed(nil)
}

func (f *Feed) Record(collection, docID, action string) {
	if f == nil || f.Publish == nil {
		return
	}
	event := Event{
		EventID:    f.NewID(),
		Collection: collection,
		DocID:      docID,
		Action:     action,
		OccurredAt: f.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal %s/%s: %v", collection, docID, err)
		return
	}
	if err := f.Publish(Subject(collection), payload); err != nil {
		log.Printf("events: publish %s: %v", Subject(collection), err)
	}
}
