package domain

import (
	"context"
	"time"

	"reserva/internal/models"
)

// BookingRepository is the authoritative store for bookings. CreateBooking
// must reject inserts whose period overlaps an active booking for the same
// resource item, regardless of any advisory locking done above it.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	FindOverlapping(ctx context.Context, resourceItemID string, period models.Period, excludeBookingID string) ([]*models.Booking, error)
	FindOverdueBookings(ctx context.Context, now time.Time) ([]*models.Booking, error)
	GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error)
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	GetInvoiceByBooking(ctx context.Context, bookingID string) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindOverdueInvoices(ctx context.Context, now time.Time) ([]*models.Invoice, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentsByInvoice(ctx context.Context, invoiceID string) ([]*models.Payment, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type ResourceLookup interface {
	GetResourceByID(ctx context.Context, id string) (*models.Resource, error)
	GetResourceItemByID(ctx context.Context, id string) (*models.ResourceItem, error)
}

// SlotLocker serializes concurrent creation attempts for one slot. Acquire
// returns granted=false after maxRetries without error; the lock is an
// optimization, correctness lives in BookingRepository.
type SlotLocker interface {
	Acquire(ctx context.Context, resourceItemID string, period models.Period, ttl time.Duration, maxRetries int) (granted bool, token string, err error)
	Release(ctx context.Context, token string) error
}

// PricingCalculator computes the price snapshot for a booking window.
// Strategy internals (seasonal tariffs etc.) are outside the engine.
type PricingCalculator interface {
	Calculate(ctx context.Context, resourceType string, basePrice float64, currency string, period models.Period) (models.PriceSnapshot, error)
}

// NotificationSink delivers a user notification. Fire-and-forget from the
// engine's point of view: failures are logged, never propagated.
type NotificationSink interface {
	Send(ctx context.Context, notification models.Notification) error
}

// Notifier enqueues notifications for asynchronous dispatch.
type Notifier interface {
	Enqueue(ctx context.Context, notification models.Notification) error
}

type AuditSink interface {
	RecordCreate(ctx context.Context, userID, domainName, entityType, entityID string, newValues interface{}) error
	RecordUpdate(ctx context.Context, userID, domainName, entityType, entityID string, oldValues, newValues interface{}) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
