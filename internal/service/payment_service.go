package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reserva/internal/database"
	"reserva/internal/domain"
	"reserva/internal/events"
	"reserva/internal/metrics"
	"reserva/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PaymentDeps struct {
	Payments domain.PaymentRepository
	Invoices domain.InvoiceRepository
	Bookings domain.BookingRepository
	EventBus domain.EventPublisher
	Audit    domain.AuditSink
}

// PaymentService drives payments against invoices. Completing a payment
// runs the cross-aggregate cascade: payment completed -> invoice paid ->
// booking confirmed. The cascade lives here, never inside the aggregates.
type PaymentService struct {
	deps       PaymentDeps
	invoiceSvc *InvoiceService
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewPaymentService(deps PaymentDeps, invoiceSvc *InvoiceService, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{
		deps:       deps,
		invoiceSvc: invoiceSvc,
		logger:     logger,
		now:        time.Now,
	}
}

type ProcessPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Method    string `json:"method"` // card, cash, bank_transfer
}

// ProcessPayment opens a payment for a pending or overdue invoice. Methods
// without an approval step complete immediately; cash waits for a manager.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (PaymentResult, error) {
	invoice, err := s.deps.Invoices.GetInvoice(ctx, req.InvoiceID)
	if errors.Is(err, database.ErrNotFound) {
		return paymentFailure(ErrCodeInvoiceNotFound), nil
	}
	if err != nil {
		return PaymentResult{}, fmt.Errorf("get invoice: %w", err)
	}

	switch invoice.Status {
	case models.InvoiceStatusPending, models.InvoiceStatusOverdue:
	default:
		return paymentFailure(ErrCodeInvalidInvoiceStatus), nil
	}

	now := s.now()
	payment := &models.Payment{
		ID:        uuid.NewString(),
		UserID:    invoice.UserID,
		InvoiceID: invoice.ID,
		Method:    req.Method,
		Status:    models.PaymentStatusPending,
		Amount:    invoice.TotalAmount,
		Currency:  invoice.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.deps.Payments.CreatePayment(ctx, payment); err != nil {
		return PaymentResult{}, fmt.Errorf("create payment: %w", err)
	}

	s.recordAudit(ctx, "create", payment, nil)
	s.markBookingPaymentPending(ctx, invoice)
	s.publishEvent(events.EventPaymentProcessed, payment)

	if !models.MethodRequiresApproval(req.Method) {
		return s.completePayment(ctx, payment)
	}
	return paymentSuccess(payment), nil
}

// ApprovePayment records a manual approval for methods that require one.
func (s *PaymentService) ApprovePayment(ctx context.Context, paymentID, approver string) (PaymentResult, error) {
	return s.transition(ctx, paymentID, "", func(p *models.Payment, now time.Time) error {
		return p.Approve(approver, now)
	})
}

// CompletePayment finishes the payment and runs the paid cascade.
func (s *PaymentService) CompletePayment(ctx context.Context, paymentID string) (PaymentResult, error) {
	payment, err := s.deps.Payments.GetPayment(ctx, paymentID)
	if errors.Is(err, database.ErrNotFound) {
		return paymentFailure(ErrCodePaymentNotFound), nil
	}
	if err != nil {
		return PaymentResult{}, fmt.Errorf("get payment: %w", err)
	}
	return s.completePayment(ctx, payment)
}

func (s *PaymentService) completePayment(ctx context.Context, payment *models.Payment) (PaymentResult, error) {
	oldStatus := payment.Status
	if err := payment.Complete(s.now()); err != nil {
		return paymentFailure(ErrCodeInvalidPaymentStatus), nil
	}
	if err := s.deps.Payments.UpdatePayment(ctx, payment); err != nil {
		return PaymentResult{}, fmt.Errorf("update payment: %w", err)
	}

	metrics.IncTransition("payment", payment.Status)
	s.recordAudit(ctx, "update", payment, map[string]string{"status": oldStatus})
	s.publishEvent(events.EventPaymentCompleted, payment)

	// Каскад: оплата завершена -> счет оплачен -> бронь подтверждена
	if result, err := s.invoiceSvc.MarkInvoicePaid(ctx, payment.InvoiceID); err != nil {
		s.logger.Error().Err(err).Str("invoice_id", payment.InvoiceID).Msg("paid cascade failed")
	} else if !result.Success {
		s.logger.Warn().Str("invoice_id", payment.InvoiceID).Str("code", result.Error).Msg("paid cascade rejected")
	}

	return paymentSuccess(payment), nil
}

// FailPayment records a failure and returns the booking to pending so the
// user can retry before the payment deadline.
func (s *PaymentService) FailPayment(ctx context.Context, paymentID, reason string) (PaymentResult, error) {
	result, err := s.transition(ctx, paymentID, events.EventPaymentFailed, func(p *models.Payment, now time.Time) error {
		return p.Fail(reason, now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.markBookingPaymentFailed(ctx, result.Payment)
	return result, nil
}

func (s *PaymentService) CancelPayment(ctx context.Context, paymentID string) (PaymentResult, error) {
	result, err := s.transition(ctx, paymentID, "", func(p *models.Payment, now time.Time) error {
		return p.Cancel(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.markBookingPaymentFailed(ctx, result.Payment)
	return result, nil
}

// RefundPayment refunds a completed payment and cascades to the invoice.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID string) (PaymentResult, error) {
	result, err := s.transition(ctx, paymentID, events.EventPaymentRefunded, func(p *models.Payment, now time.Time) error {
		return p.Refund(now)
	})
	if err != nil || !result.Success {
		return result, err
	}

	if invResult, err := s.invoiceSvc.RefundInvoice(ctx, result.Payment.InvoiceID); err != nil {
		s.logger.Error().Err(err).Str("invoice_id", result.Payment.InvoiceID).Msg("refund cascade failed")
	} else if !invResult.Success {
		s.logger.Warn().Str("invoice_id", result.Payment.InvoiceID).Str("code", invResult.Error).Msg("refund cascade rejected")
	}
	return result, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.deps.Payments.GetPayment(ctx, id)
}

func (s *PaymentService) GetPaymentsByInvoice(ctx context.Context, invoiceID string) ([]*models.Payment, error) {
	return s.deps.Payments.GetPaymentsByInvoice(ctx, invoiceID)
}

func (s *PaymentService) transition(ctx context.Context, id, eventType string, mutate func(*models.Payment, time.Time) error) (PaymentResult, error) {
	payment, err := s.deps.Payments.GetPayment(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return paymentFailure(ErrCodePaymentNotFound), nil
	}
	if err != nil {
		return PaymentResult{}, fmt.Errorf("get payment: %w", err)
	}

	oldStatus := payment.Status
	if err := mutate(payment, s.now()); err != nil {
		if errors.Is(err, models.ErrApproverRequired) {
			return paymentFailure(ErrCodeApproverRequired), nil
		}
		if errors.Is(err, models.ErrInvalidStatus) {
			return paymentFailure(ErrCodeInvalidPaymentStatus), nil
		}
		return PaymentResult{}, err
	}

	if err := s.deps.Payments.UpdatePayment(ctx, payment); err != nil {
		return PaymentResult{}, fmt.Errorf("update payment: %w", err)
	}

	metrics.IncTransition("payment", payment.Status)
	s.recordAudit(ctx, "update", payment, map[string]string{"status": oldStatus})
	if eventType != "" {
		s.publishEvent(eventType, payment)
	}
	return paymentSuccess(payment), nil
}

func (s *PaymentService) markBookingPaymentPending(ctx context.Context, invoice *models.Invoice) {
	if invoice.BookingID == "" {
		return
	}

	booking, err := s.deps.Bookings.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", invoice.BookingID).Msg("payment pending cascade lookup failed")
		return
	}
	if err := booking.MarkPaymentPending(s.now()); err != nil {
		return
	}
	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("payment pending cascade update failed")
	}
}

func (s *PaymentService) markBookingPaymentFailed(ctx context.Context, payment *models.Payment) {
	invoice, err := s.deps.Invoices.GetInvoice(ctx, payment.InvoiceID)
	if err != nil || invoice.BookingID == "" {
		return
	}

	booking, err := s.deps.Bookings.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", invoice.BookingID).Msg("payment failed cascade lookup failed")
		return
	}
	if err := booking.MarkPaymentFailed(s.now()); err != nil {
		return
	}
	if err := s.deps.Bookings.UpdateBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("payment failed cascade update failed")
	}
}

func (s *PaymentService) publishEvent(eventType string, payment *models.Payment) {
	if s.deps.EventBus == nil {
		return
	}

	payload := events.PaymentEventPayload{
		PaymentID: payment.ID,
		InvoiceID: payment.InvoiceID,
		Status:    payment.Status,
		Method:    payment.Method,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Reason:    payment.FailureReason,
	}

	if err := s.deps.EventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("payment_id", payment.ID).Msg("publish event error")
	}
}

func (s *PaymentService) recordAudit(ctx context.Context, action string, payment *models.Payment, oldValues interface{}) {
	if s.deps.Audit == nil {
		return
	}

	var err error
	if action == "create" {
		err = s.deps.Audit.RecordCreate(ctx, payment.UserID, "billing", "payment", payment.ID, payment)
	} else {
		err = s.deps.Audit.RecordUpdate(ctx, payment.UserID, "billing", "payment", payment.ID, oldValues, payment)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", payment.ID).Msg("audit record error")
	}
}
