package models

import (
	"errors"
	"time"
)

var (
	// ErrInvalidStatus is returned by aggregate transitions when the current
	// status does not permit the requested change.
	ErrInvalidStatus = errors.New("invalid status transition")

	// ErrDeadlineNotReached is returned by Expire before the payment deadline.
	ErrDeadlineNotReached = errors.New("payment deadline not reached")
)

// Period is a half-open time window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) IsValid() bool {
	return p.Start.Before(p.End)
}

// Overlaps reports whether two half-open intervals intersect.
// [10:00,11:00) and [11:00,12:00) do not overlap.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

func (p Period) Hours() float64 {
	return p.End.Sub(p.Start).Hours()
}

// PriceSnapshot fixes the price at booking creation time so later tariff
// changes do not affect existing bookings.
type PriceSnapshot struct {
	BasePrice  float64 `json:"base_price"`
	Commission float64 `json:"commission"`
	TotalPrice float64 `json:"total_price"`
	Currency   string  `json:"currency"`
}

type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	ResourceID      string        `json:"resource_id"`
	ResourceItemID  string        `json:"resource_item_id"`
	Period          Period        `json:"period"`
	Price           PriceSnapshot `json:"price"`
	Status          string        `json:"status"` // pending, payment_pending, confirmed, cancelled, expired, completed
	PaymentDeadline time.Time     `json:"payment_deadline"`
	InvoiceID       string        `json:"invoice_id,omitempty"` // correlation id, no ownership
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int64         `json:"version"`
}

// Confirm moves the booking to confirmed. Allowed from pending and
// payment_pending only.
func (b *Booking) Confirm(now time.Time) error {
	switch b.Status {
	case BookingStatusPending, BookingStatusPaymentPending:
		b.Status = BookingStatusConfirmed
		b.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

// MarkPaymentPending records that a payment attempt is in flight.
func (b *Booking) MarkPaymentPending(now time.Time) error {
	if b.Status != BookingStatusPending {
		return ErrInvalidStatus
	}
	b.Status = BookingStatusPaymentPending
	b.UpdatedAt = now
	return nil
}

// MarkPaymentFailed returns the booking to pending after a failed payment
// attempt; the payment deadline keeps running.
func (b *Booking) MarkPaymentFailed(now time.Time) error {
	if b.Status != BookingStatusPaymentPending {
		return ErrInvalidStatus
	}
	b.Status = BookingStatusPending
	b.UpdatedAt = now
	return nil
}

// Cancel is allowed from pending, payment_pending and confirmed.
func (b *Booking) Cancel(now time.Time) error {
	switch b.Status {
	case BookingStatusPending, BookingStatusPaymentPending, BookingStatusConfirmed:
		b.Status = BookingStatusCancelled
		b.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

// Expire is allowed from pending and payment_pending, and only once the
// payment deadline has passed.
func (b *Booking) Expire(now time.Time) error {
	switch b.Status {
	case BookingStatusPending, BookingStatusPaymentPending:
	default:
		return ErrInvalidStatus
	}
	if !now.After(b.PaymentDeadline) {
		return ErrDeadlineNotReached
	}
	b.Status = BookingStatusExpired
	b.UpdatedAt = now
	return nil
}

// Complete is allowed from confirmed only.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != BookingStatusConfirmed {
		return ErrInvalidStatus
	}
	b.Status = BookingStatusCompleted
	b.UpdatedAt = now
	return nil
}

// IsActive reports whether the booking occupies its slot.
func (b *Booking) IsActive() bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusPaymentPending, BookingStatusConfirmed:
		return true
	}
	return false
}
