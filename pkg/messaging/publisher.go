// Package messaging defines the event publishing contract used by the services.
package messaging

import (
	"context"
)

// SalesCompletedSubject is the subject sale events are published on.
const SalesCompletedSubject = "sales.completed"

// SalesSubjects is the wildcard covering every sales subject.
const SalesSubjects = "sales.>"

type Event interface {
	Subject() string
	// MessageID identifies the event for broker side de-duplication.
	MessageID() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
