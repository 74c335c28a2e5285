package events

import (
	"sync"

	"courier/internal/logger"
	"courier/internal/models"
)

// event types published by the message lifecycle
const (
	MessageCreated = "message.created"
	MessageUpdated = "message.updated"
	MessageDeleted = "message.deleted"
	UserCreated    = "user.created"
	UserDeleted    = "user.deleted"
)

// MessageCreatedPayload carries a freshly stored message. RecipientIDs is
// set for conversation messages, which notify every other participant;
// direct messages leave it empty and notify Message.RecipientID.
type MessageCreatedPayload struct {
	Message      *models.Message
	Sender       *models.User
	RecipientIDs []uint
}

// MessageUpdatedPayload carries the message after an edit together with
// the pre-edit snapshot, so subscribers can record history.
type MessageUpdatedPayload struct {
	Message    *models.Message
	OldSubject string
	OldBody    string
	EditorID   uint
	// Changed is false when a save touched neither subject nor body.
	Changed bool
}

// MessageDeletedPayload identifies a removed message and its deleted
// replies, so cleanup handlers can drop every dependent row.
type MessageDeletedPayload struct {
	MessageIDs  []uint
	SenderID    uint
	RecipientID uint
}

// UserCreatedPayload carries a newly registered user.
type UserCreatedPayload struct {
	User *models.User
}

// UserDeletedPayload identifies a removed account, so cleanup handlers can
// drop its messages, notifications, history and conversation memberships.
type UserDeletedPayload struct {
	UserID uint
}

// Handler processes a published event payload.
type Handler func(payload any)

// Bus is an in-process publish/subscribe dispatcher keyed by event type.
// Dispatch is synchronous and in registration order: when Publish returns,
// every subscriber has run and its writes are visible to the caller. A
// panicking handler is logged and skipped without aborting the rest.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type. "*" matches all events.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish runs every handler registered for the event type.
func (b *Bus) Publish(eventType string, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType]))
	handlers = append(handlers, b.handlers[eventType]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		runHandler(eventType, h, payload)
	}
}

func runHandler(eventType string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("event handler panicked for %s: %v", eventType, r)
		}
	}()
	h(payload)
}
