package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventBookingCompleted = "booking_completed"

	EventInvoiceFinalized = "invoice_finalized"
	EventInvoicePaid      = "invoice_paid"
	EventInvoiceOverdue   = "invoice_overdue"
	EventInvoiceCancelled = "invoice_cancelled"
	EventInvoiceRefunded  = "invoice_refunded"

	EventPaymentProcessed = "payment_processed"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPaymentRefunded  = "payment_refunded"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID      string    `json:"booking_id"`
	UserID         string    `json:"user_id"`
	ResourceItemID string    `json:"resource_item_id"`
	Status         string    `json:"status"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TotalPrice     float64   `json:"total_price,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// InvoiceEventPayload carries the invoice state relevant to consumers.
type InvoiceEventPayload struct {
	InvoiceID   string  `json:"invoice_id"`
	Number      string  `json:"number"`
	BookingID   string  `json:"booking_id,omitempty"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
}

// PaymentEventPayload carries the payment state relevant to consumers.
type PaymentEventPayload struct {
	PaymentID string  `json:"payment_id"`
	InvoiceID string  `json:"invoice_id"`
	Status    string  `json:"status"`
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reason    string  `json:"reason,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
