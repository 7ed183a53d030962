package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Resource struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Type      string    `json:"type" yaml:"type"` // room, table, seat, ...
	BasePrice float64   `json:"base_price" yaml:"base_price"` // per hour
	Currency  string    `json:"currency" yaml:"currency"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// ResourceItem is a single bookable unit of a resource (a concrete room,
// a concrete table). Overlap prevention works at this level.
type ResourceItem struct {
	ID         string    `json:"id" yaml:"id"`
	ResourceID string    `json:"resource_id" yaml:"resource_id"`
	Name       string    `json:"name" yaml:"name"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
}

// Notification is a queued user-facing message. Delivery transport is an
// external collaborator; the engine only guarantees at-least-once handoff.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuditRecord is a best-effort trail entry for entity changes.
type AuditRecord struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"` // create, update
	Domain     string    `json:"domain"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OldValues  string    `json:"old_values,omitempty"` // JSON snapshot
	NewValues  string    `json:"new_values,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
