package service

import (
	"context"
	"errors"
	"fmt"
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

// BookingDeps собирает зависимости сервиса бронирования
type BookingDeps struct {
	Bookings  domain.BookingRepository
	Invoices  domain.InvoiceRepository
	Users     domain.UserLookup
	Resources domain.ResourceLookup
	Locker    domain.SlotLocker
	Pricing   domain.PricingCalculator
	Notifier  domain.Notifier
	Audit     domain.AuditSink
	EventBus  domain.EventPublisher
}

// BookingService orchestrates a single reservation attempt: validation,
// slot lock, pricing, persistence and side effects. Expected business
// conflicts come back as BookingResult codes; only infrastructure failures
// are returned as errors.
type BookingService struct {
	deps   BookingDeps
	cfg    config.BookingConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBookingService(deps BookingDeps, cfg config.BookingConfig, logger *zerolog.Logger) *BookingService {
	if cfg.PaymentDeadlineMinutes <= 0 {
		cfg.PaymentDeadlineMinutes = models.DefaultPaymentDeadlineMinutes
	}
	if cfg.LockTTLSeconds <= 0 {
		cfg.LockTTLSeconds = models.DefaultLockTTLSeconds
	}
	if cfg.LockMaxRetries <= 0 {
		cfg.LockMaxRetries = models.DefaultLockMaxRetries
	}
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = 365
	}
	return &BookingService{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type CreateBookingRequest struct {
	UserID         string        `json:"user_id"`
	ResourceID     string        `json:"resource_id"`
	ResourceItemID string        `json:"resource_item_id"`
	Period         models.Period `json:"period"`
	Notes          string        `json:"notes,omitempty"`
}

func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (BookingResult, error) {
	now := s.now()

	// Валидация окна и ссылок до любых побочных эффектов
	if !req.Period.IsValid() {
		return bookingFailure(ErrCodeInvalidDateRange), nil
	}
	if req.Period.Start.Before(now) {
		return bookingFailure(ErrCodeStartDateInPast), nil
	}
	if req.Period.Start.After(now.AddDate(0, 0, s.cfg.MaxAdvanceDays)) {
		return bookingFailure(ErrCodeInvalidDateRange), nil
	}

	user, err := s.deps.Users.GetUserByID(ctx, req.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return bookingFailure(ErrCodeUserNotFound), nil
	}
	if err != nil {
		return BookingResult{}, fmt.Errorf("user lookup: %w", err)
	}

	resource, err := s.deps.Resources.GetResourceByID(ctx, req.ResourceID)
	if errors.Is(err, database.ErrNotFound) {
		return bookingFailure(ErrCodeResourceNotFound), nil
	}
	if err != nil {
		return BookingResult{}, fmt.Errorf("resource lookup: %w", err)
	}

	item, err := s.deps.Resources.GetResourceItemByID(ctx, req.ResourceItemID)
	if errors.Is(err, database.ErrNotFound) {
		return bookingFailure(ErrCodeResourceItemNotFound), nil
	}
	if err != nil {
		return BookingResult{}, fmt.Errorf("resource item lookup: %w", err)
	}
	if item.ResourceID != resource.ID {
		return bookingFailure(ErrCodeResourceItemMismatch), nil
	}

	// Слот-блокировка сериализует конкурентные попытки на одно окно
	granted, token, err := s.deps.Locker.Acquire(ctx, item.ID, req.Period, s.cfg.LockTTL(), s.cfg.LockMaxRetries)
	if err != nil {
		metrics.IncLockAcquisition("error")
		return BookingResult{}, fmt.Errorf("slot lock acquire: %w", err)
	}
	if !granted {
		metrics.IncLockAcquisition("contended")
		metrics.IncBookingConflict("lock_contention")
		return bookingFailure(ErrCodePeriodLocked), nil
	}
	metrics.IncLockAcquisition("granted")
	// Освобождаем блокировку на любом пути выхода
	defer func() {
		if releaseErr := s.deps.Locker.Release(ctx, token); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("resource_item_id", item.ID).Msg("slot lock release failed")
		}
	}()

	price, err := s.deps.Pricing.Calculate(ctx, resource.Type, resource.BasePrice, resource.Currency, req.Period)
	if err != nil {
		return BookingResult{}, fmt.Errorf("pricing: %w", err)
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		ResourceID:      resource.ID,
		ResourceItemID:  item.ID,
		Period:          req.Period,
		Price:           price,
		Status:          models.BookingStatusPending,
		PaymentDeadline: now.Add(s.cfg.PaymentDeadline()),
		Notes:           req.Notes,
	}

	err = s.deps.Bookings.CreateBooking(ctx, booking)
	if errors.Is(err, database.ErrPeriodOverlap) {
		// Слот реально занят, повторять бессмысленно
		metrics.IncBookingConflict("period_overlap")
		return bookingFailure(ErrCodePeriodReserved), nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("resource_item_id", item.ID).Msg("booking insert failed")
		return bookingFailure(ErrCodeBookingCreateFailed), nil
	}

	metrics.IncBookingCreated(resource.Type)
	s.recordAudit(ctx, "create", booking, nil)
	s.publishEvent(events.EventBookingCreated, booking, "")
	s.notify(ctx, booking.UserID, "booking_created", "Booking created",
		fmt.Sprintf("Booking %s is pending payment until %s", booking.ID, booking.PaymentDeadline.Format(time.RFC3339)),
		booking.ID)

	return bookingSuccess(booking), nil
}

// CheckAvailability runs the advisory overlap read. The result can go stale
// immediately; CreateBooking re-checks inside the storage transaction.
func (s *BookingService) CheckAvailability(ctx context.Context, resourceItemID string, period models.Period, excludeBookingID string) (AvailabilityResult, error) {
	if !period.IsValid() {
		return AvailabilityResult{}, fmt.Errorf("invalid period")
	}
	conflicting, err := s.deps.Bookings.FindOverlapping(ctx, resourceItemID, period, excludeBookingID)
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("availability read: %w", err)
	}
	return AvailabilityResult{IsAvailable: len(conflicting) == 0, Conflicting: conflicting}, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, id string) (BookingResult, error) {
	return s.transition(ctx, id, events.EventBookingConfirmed, "", func(b *models.Booking, now time.Time) error {
		return b.Confirm(now)
	})
}

func (s *BookingService) CancelBooking(ctx context.Context, id, reason string) (BookingResult, error) {
	result, err := s.transition(ctx, id, events.EventBookingCancelled, reason, func(b *models.Booking, now time.Time) error {
		return b.Cancel(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	// Каскадная отмена связанного счета, если он еще не оплачен
	s.cancelLinkedInvoice(ctx, result.Booking)
	s.notify(ctx, result.Booking.UserID, "booking_cancelled", "Booking cancelled",
		fmt.Sprintf("Booking %s was cancelled", result.Booking.ID), result.Booking.ID)
	return result, nil
}

func (s *BookingService) ExpireBooking(ctx context.Context, id string) (BookingResult, error) {
	result, err := s.transition(ctx, id, events.EventBookingExpired, "payment deadline passed", func(b *models.Booking, now time.Time) error {
		return b.Expire(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.cancelLinkedInvoice(ctx, result.Booking)
	s.notify(ctx, result.Booking.UserID, "booking_expired", "Booking expired",
		fmt.Sprintf("Booking %s expired because the payment deadline passed", result.Booking.ID), result.Booking.ID)
	return result, nil
}

func (s *BookingService) CompleteBooking(ctx context.Context, id string) (BookingResult, error) {
	return s.transition(ctx, id, events.EventBookingCompleted, "", func(b *models.Booking, now time.Time) error {
		return b.Complete(now)
	})
}

// MarkPaymentPending flags the booking while a payment attempt is in flight.
func (s *BookingService) MarkPaymentPending(ctx context.Context, id string) (BookingResult, error) {
	return s.transition(ctx, id, "", "", func(b *models.Booking, now time.Time) error {
		return b.MarkPaymentPending(now)
	})
}

// MarkPaymentFailed returns the booking to pending after a failed payment.
func (s *BookingService) MarkPaymentFailed(ctx context.Context, id string) (BookingResult, error) {
	return s.transition(ctx, id, "", "", func(b *models.Booking, now time.Time) error {
		return b.MarkPaymentFailed(now)
	})
}

// AttachInvoice records the invoice correlation id on the booking.
func (s *BookingService) AttachInvoice(ctx context.Context, bookingID, invoiceID string) (BookingResult, error) {
	booking, err := s.deps.Bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return bookingFailure(ErrCodeBookingNotFound), nil
	}
	if err != nil {
		return BookingResult{}, fmt.Errorf("get booking: %w", err)
	}

	booking.InvoiceID = invoiceID
	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		return BookingResult{}, fmt.Errorf("attach invoice: %w", err)
	}
	return bookingSuccess(booking), nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.deps.Bookings.GetBooking(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	return s.deps.Bookings.GetUserBookings(ctx, userID)
}

// transition loads the booking, applies a guarded aggregate mutation and
// persists it. Guard violations map to INVALID_BOOKING_STATUS.
func (s *BookingService) transition(ctx context.Context, id, eventType, reason string, mutate func(*models.Booking, time.Time) error) (BookingResult, error) {
	booking, err := s.deps.Bookings.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return bookingFailure(ErrCodeBookingNotFound), nil
	}
	if err != nil {
		return BookingResult{}, fmt.Errorf("get booking: %w", err)
	}

	oldStatus := booking.Status
	if err := mutate(booking, s.now()); err != nil {
		if errors.Is(err, models.ErrInvalidStatus) || errors.Is(err, models.ErrDeadlineNotReached) {
			return bookingFailure(ErrCodeInvalidBookingStatus), nil
		}
		return BookingResult{}, err
	}

	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		return BookingResult{}, fmt.Errorf("update booking: %w", err)
	}

	metrics.IncTransition("booking", booking.Status)
	s.recordAudit(ctx, "update", booking, map[string]string{"status": oldStatus})
	if eventType != "" {
		s.publishEvent(eventType, booking, reason)
	}
	return bookingSuccess(booking), nil
}

// cancelLinkedInvoice cascades a booking cancel/expire to the correlated
// invoice when it is still cancellable. Best-effort: failures are logged.
func (s *BookingService) cancelLinkedInvoice(ctx context.Context, booking *models.Booking) {
	if booking.InvoiceID == "" || s.deps.Invoices == nil {
		return
	}

	invoice, err := s.deps.Invoices.GetInvoice(ctx, booking.InvoiceID)
	if err != nil {
		s.logger.Error().Err(err).Str("invoice_id", booking.InvoiceID).Msg("cascade invoice lookup failed")
		return
	}

	if err := invoice.Cancel(s.now()); err != nil {
		// Paid or already terminal, nothing to cascade
		return
	}
	if err := s.deps.Invoices.UpdateInvoice(ctx, invoice); err != nil {
		s.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("cascade invoice cancel failed")
		return
	}
	metrics.IncTransition("invoice", invoice.Status)
	s.publishInvoiceEvent(events.EventInvoiceCancelled, invoice)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, reason string) {
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
		TotalPrice:     booking.Price.TotalPrice,
		Currency:       booking.Price.Currency,
		Reason:         reason,
	}

	if err := s.deps.EventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishInvoiceEvent(eventType string, invoice *models.Invoice) {
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

func (s *BookingService) recordAudit(ctx context.Context, action string, booking *models.Booking, oldValues interface{}) {
	if s.deps.Audit == nil {
		return
	}

	var err error
	if action == "create" {
		err = s.deps.Audit.RecordCreate(ctx, booking.UserID, "booking", "booking", booking.ID, booking)
	} else {
		err = s.deps.Audit.RecordUpdate(ctx, booking.UserID, "booking", "booking", booking.ID, oldValues, booking)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("audit record error")
	}
}

func (s *BookingService) notify(ctx context.Context, userID, notifType, title, message, bookingID string) {
	if s.deps.Notifier == nil {
		return
	}

	notification := models.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Metadata: map[string]string{
			"booking_id": bookingID,
		},
		CreatedAt: s.now(),
	}
	if err := s.deps.Notifier.Enqueue(ctx, notification); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("notification enqueue error")
	}
}
