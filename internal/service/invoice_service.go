package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/domain"
	"reserva/internal/events"
	"reserva/internal/metrics"
	"reserva/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type InvoiceDeps struct {
	Invoices domain.InvoiceRepository
	Bookings domain.BookingRepository
	Notifier domain.Notifier
	Audit    domain.AuditSink
	EventBus domain.EventPublisher
}

// InvoiceService owns the invoice lifecycle and the invoice-side cascades:
// a paid invoice confirms its booking, a cancelled invoice cancels it.
type InvoiceService struct {
	deps   InvoiceDeps
	cfg    config.InvoicingConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewInvoiceService(deps InvoiceDeps, cfg config.InvoicingConfig, logger *zerolog.Logger) *InvoiceService {
	if cfg.DueDays <= 0 {
		cfg.DueDays = models.DefaultInvoiceDueDays
	}
	return &InvoiceService{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type CreateInvoiceRequest struct {
	UserID    string               `json:"user_id"`
	BookingID string               `json:"booking_id,omitempty"`
	Currency  string               `json:"currency"`
	Items     []models.InvoiceItem `json:"items"`
	Discount  float64              `json:"discount,omitempty"`
}

// CreateInvoice builds a draft invoice. When a booking id is given, the
// correlation id is recorded on both sides (lookup only, no ownership).
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResult, error) {
	now := s.now()

	var booking *models.Booking
	if req.BookingID != "" {
		var err error
		booking, err = s.deps.Bookings.GetBooking(ctx, req.BookingID)
		if errors.Is(err, database.ErrNotFound) {
			return invoiceFailure(ErrCodeBookingNotFound), nil
		}
		if err != nil {
			return InvoiceResult{}, fmt.Errorf("get booking: %w", err)
		}
	}

	invoice := &models.Invoice{
		ID:             uuid.NewString(),
		Number:         newInvoiceNumber(now),
		UserID:         req.UserID,
		Status:         models.InvoiceStatusDraft,
		Items:          req.Items,
		DiscountAmount: req.Discount,
		Currency:       req.Currency,
		BookingID:      req.BookingID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	invoice.Recalculate(s.cfg.TaxRate)

	if err := s.deps.Invoices.CreateInvoice(ctx, invoice); err != nil {
		return InvoiceResult{}, fmt.Errorf("create invoice: %w", err)
	}

	if booking != nil {
		booking.InvoiceID = invoice.ID
		if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
			s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("invoice back-reference update failed")
		}
	}

	s.recordAudit(ctx, "create", invoice, nil)
	return invoiceSuccess(invoice), nil
}

// CreateInvoiceForBooking drafts a one-line invoice from the booking's price
// snapshot, so later tariff changes do not change the amount due.
func (s *InvoiceService) CreateInvoiceForBooking(ctx context.Context, bookingID string) (InvoiceResult, error) {
	booking, err := s.deps.Bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return invoiceFailure(ErrCodeBookingNotFound), nil
	}
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("get booking: %w", err)
	}

	item := models.InvoiceItem{
		ResourceID:     booking.ResourceID,
		ResourceItemID: booking.ResourceItemID,
		Description: fmt.Sprintf("Reservation %s - %s",
			booking.Period.Start.Format(time.RFC3339), booking.Period.End.Format(time.RFC3339)),
		Quantity:  1,
		UnitPrice: booking.Price.TotalPrice,
	}

	return s.CreateInvoice(ctx, CreateInvoiceRequest{
		UserID:    booking.UserID,
		BookingID: booking.ID,
		Currency:  booking.Price.Currency,
		Items:     []models.InvoiceItem{item},
	})
}

// AddItem appends a line item to a draft invoice and recalculates amounts.
func (s *InvoiceService) AddItem(ctx context.Context, invoiceID string, item models.InvoiceItem) (InvoiceResult, error) {
	return s.transition(ctx, invoiceID, "", func(i *models.Invoice, now time.Time) error {
		return i.AddItem(item, s.cfg.TaxRate, now)
	})
}

// FinalizeInvoice issues the draft: draft -> pending with a due date.
func (s *InvoiceService) FinalizeInvoice(ctx context.Context, invoiceID string) (InvoiceResult, error) {
	return s.transition(ctx, invoiceID, events.EventInvoiceFinalized, func(i *models.Invoice, now time.Time) error {
		if len(i.Items) == 0 {
			return errInvoiceEmpty
		}
		return i.Finalize(now.AddDate(0, 0, s.cfg.DueDays), now)
	})
}

// MarkInvoicePaid moves the invoice to paid and confirms the linked booking.
// Driven by the payment cascade, not called by users directly.
func (s *InvoiceService) MarkInvoicePaid(ctx context.Context, invoiceID string) (InvoiceResult, error) {
	result, err := s.transition(ctx, invoiceID, events.EventInvoicePaid, func(i *models.Invoice, now time.Time) error {
		return i.MarkPaid(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.confirmLinkedBooking(ctx, result.Invoice)
	s.notify(ctx, result.Invoice, "invoice_paid", "Invoice paid",
		fmt.Sprintf("Invoice %s has been paid", result.Invoice.Number))
	return result, nil
}

// MarkInvoiceOverdue is used by the expiry sweep for invoices past due date.
func (s *InvoiceService) MarkInvoiceOverdue(ctx context.Context, invoiceID string) (InvoiceResult, error) {
	result, err := s.transition(ctx, invoiceID, events.EventInvoiceOverdue, func(i *models.Invoice, now time.Time) error {
		return i.MarkOverdue(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.cancelLinkedBooking(ctx, result.Invoice)
	return result, nil
}

// CancelInvoice cancels the invoice and cascades to a still-pending booking.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID string) (InvoiceResult, error) {
	result, err := s.transition(ctx, invoiceID, events.EventInvoiceCancelled, func(i *models.Invoice, now time.Time) error {
		return i.Cancel(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.cancelLinkedBooking(ctx, result.Invoice)
	return result, nil
}

// RefundInvoice is allowed from paid only.
func (s *InvoiceService) RefundInvoice(ctx context.Context, invoiceID string) (InvoiceResult, error) {
	return s.transition(ctx, invoiceID, events.EventInvoiceRefunded, func(i *models.Invoice, now time.Time) error {
		return i.Refund(now)
	})
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.deps.Invoices.GetInvoice(ctx, id)
}

func (s *InvoiceService) GetInvoiceByBooking(ctx context.Context, bookingID string) (*models.Invoice, error) {
	return s.deps.Invoices.GetInvoiceByBooking(ctx, bookingID)
}

var errInvoiceEmpty = errors.New("invoice has no items")

func (s *InvoiceService) transition(ctx context.Context, id, eventType string, mutate func(*models.Invoice, time.Time) error) (InvoiceResult, error) {
	invoice, err := s.deps.Invoices.GetInvoice(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return invoiceFailure(ErrCodeInvoiceNotFound), nil
	}
	if err != nil {
		return InvoiceResult{}, fmt.Errorf("get invoice: %w", err)
	}

	oldStatus := invoice.Status
	if err := mutate(invoice, s.now()); err != nil {
		if errors.Is(err, models.ErrInvalidStatus) {
			return invoiceFailure(ErrCodeInvalidInvoiceStatus), nil
		}
		if errors.Is(err, errInvoiceEmpty) {
			return invoiceFailure(ErrCodeInvoiceEmpty), nil
		}
		return InvoiceResult{}, err
	}

	if err := s.deps.Invoices.UpdateInvoice(ctx, invoice); err != nil {
		return InvoiceResult{}, fmt.Errorf("update invoice: %w", err)
	}

	if oldStatus != invoice.Status {
		metrics.IncTransition("invoice", invoice.Status)
	}
	s.recordAudit(ctx, "update", invoice, map[string]string{"status": oldStatus})
	if eventType != "" {
		s.publishEvent(eventType, invoice)
	}
	return invoiceSuccess(invoice), nil
}

func (s *InvoiceService) confirmLinkedBooking(ctx context.Context, invoice *models.Invoice) {
	if invoice.BookingID == "" {
		return
	}

	booking, err := s.deps.Bookings.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", invoice.BookingID).Msg("cascade booking lookup failed")
		return
	}
	if err := booking.Confirm(s.now()); err != nil {
		// Already terminal, the payment landed too late
		s.logger.Warn().Str("booking_id", booking.ID).Str("status", booking.Status).Msg("paid invoice could not confirm booking")
		return
	}
	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("cascade booking confirm failed")
		return
	}
	metrics.IncTransition("booking", booking.Status)
	s.publishBookingEvent(events.EventBookingConfirmed, booking)
}

func (s *InvoiceService) cancelLinkedBooking(ctx context.Context, invoice *models.Invoice) {
	if invoice.BookingID == "" {
		return
	}

	booking, err := s.deps.Bookings.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", invoice.BookingID).Msg("cascade booking lookup failed")
		return
	}
	if !booking.IsActive() {
		return
	}
	if err := booking.Cancel(s.now()); err != nil {
		return
	}
	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("cascade booking cancel failed")
		return
	}
	metrics.IncTransition("booking", booking.Status)
	s.publishBookingEvent(events.EventBookingCancelled, booking)
}

func (s *InvoiceService) publishEvent(eventType string, invoice *models.Invoice) {
	if s.deps.EventBus == nil {
		return
	}

	payload := events.InvoiceEventPayload{
		InvoiceID:   invoice.ID,
		Number:      invoice.Number,
		BookingID:   invoice.BookingID,
		UserID:      invoice.UserID,
		Status:      invoice.Status,
		TotalAmount: invoice.TotalAmount,
		Currency:    invoice.Currency,
	}

	if err := s.deps.EventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("invoice_id", invoice.ID).Msg("publish event error")
	}
}

func (s *InvoiceService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.deps.EventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		UserID:         booking.UserID,
		ResourceItemID: booking.ResourceItemID,
		Status:         booking.Status,
		StartAt:        booking.Period.Start,
		EndAt:          booking.Period.End,
	}

	if err := s.deps.EventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *InvoiceService) recordAudit(ctx context.Context, action string, invoice *models.Invoice, oldValues interface{}) {
	if s.deps.Audit == nil {
		return
	}

	var err error
	if action == "create" {
		err = s.deps.Audit.RecordCreate(ctx, invoice.UserID, "billing", "invoice", invoice.ID, invoice)
	} else {
		err = s.deps.Audit.RecordUpdate(ctx, invoice.UserID, "billing", "invoice", invoice.ID, oldValues, invoice)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("audit record error")
	}
}

func (s *InvoiceService) notify(ctx context.Context, invoice *models.Invoice, notifType, title, message string) {
	if s.deps.Notifier == nil {
		return
	}

	notification := models.Notification{
		ID:      uuid.NewString(),
		UserID:  invoice.UserID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Metadata: map[string]string{
			"invoice_id": invoice.ID,
		},
		CreatedAt: s.now(),
	}
	if err := s.deps.Notifier.Enqueue(ctx, notification); err != nil {
		s.logger.Error().Err(err).Str("user_id", invoice.UserID).Msg("notification enqueue error")
	}
}

func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
}
