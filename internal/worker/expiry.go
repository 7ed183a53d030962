package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"reserva/internal/domain"
	"reserva/internal/events"
	"reserva/internal/metrics"
	"reserva/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reconciler is the periodic expiry sweep. It drives overdue bookings to
// expired and overdue invoices to overdue, cascading between the two
// aggregates. Idempotent: status guards make re-running a no-op.
type Reconciler struct {
	bookings domain.BookingRepository
	invoices domain.InvoiceRepository
	notifier domain.Notifier
	eventBus domain.EventPublisher
	interval time.Duration
	logger   *zerolog.Logger

	now      func() time.Time
	sweeping atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewReconciler(bookings domain.BookingRepository, invoices domain.InvoiceRepository, notifier domain.Notifier, eventBus domain.EventPublisher, interval time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = models.DefaultExpiryIntervalSeconds * time.Second
	}
	return &Reconciler{
		bookings: bookings,
		invoices: invoices,
		notifier: notifier,
		eventBus: eventBus,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start launches the ticker loop. Ticks overlapping a running sweep are
// skipped, a new sweep never starts while the previous one is in flight.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.logger.Info().Dur("interval", r.interval).Msg("expiry reconciler started")
		defer r.logger.Info().Msg("expiry reconciler stopped")

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Sweep(ctx); err != nil {
					r.logger.Error().Err(err).Msg("expiry sweep failed")
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Sweep runs one reconciliation pass and returns the number of entities it
// transitioned. Exported so tests can drive it directly with a fake clock.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	if !r.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer r.sweeping.Store(false)

	started := r.now()
	transitioned := 0
	transitioned += r.expireOverdueBookings(ctx)
	transitioned += r.markOverdueInvoices(ctx)

	metrics.ObserveExpirySweep(time.Since(started), transitioned)
	if transitioned > 0 {
		r.logger.Info().Int("transitions", transitioned).Msg("expiry sweep done")
	}
	return transitioned, nil
}

func (r *Reconciler) expireOverdueBookings(ctx context.Context) int {
	now := r.now()
	overdue, err := r.bookings.FindOverdueBookings(ctx, now)
	if err != nil {
		r.logger.Error().Err(err).Msg("overdue bookings query failed")
		return 0
	}

	count := 0
	for _, booking := range overdue {
		if err := r.expireBooking(ctx, booking, now); err != nil {
			// Одна проблемная запись не должна останавливать обход
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("expire booking failed")
			continue
		}
		count++
	}
	return count
}

func (r *Reconciler) expireBooking(ctx context.Context, booking *models.Booking, now time.Time) error {
	if err := booking.Expire(now); err != nil {
		// Already transitioned by a concurrent actor, nothing to do
		return nil
	}
	if err := r.bookings.UpdateBooking(ctx, booking); err != nil {
		return fmt.Errorf("persist expired booking: %w", err)
	}

	metrics.IncTransition("booking", booking.Status)
	r.publishBookingEvent(events.EventBookingExpired, booking)
	r.notify(ctx, booking.UserID, "booking_expired", "Booking expired",
		fmt.Sprintf("Booking %s expired because the payment deadline passed", booking.ID),
		map[string]string{"booking_id": booking.ID})

	r.cancelLinkedInvoice(ctx, booking, now)
	return nil
}

func (r *Reconciler) cancelLinkedInvoice(ctx context.Context, booking *models.Booking, now time.Time) {
	if booking.InvoiceID == "" {
		return
	}

	invoice, err := r.invoices.GetInvoice(ctx, booking.InvoiceID)
	if err != nil {
		r.logger.Error().Err(err).Str("invoice_id", booking.InvoiceID).Msg("cascade invoice lookup failed")
		return
	}
	if invoice.Status != models.InvoiceStatusPending {
		return
	}
	if err := invoice.Cancel(now); err != nil {
		return
	}
	if err := r.invoices.UpdateInvoice(ctx, invoice); err != nil {
		r.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("cascade invoice cancel failed")
		return
	}
	metrics.IncTransition("invoice", invoice.Status)
	r.publishInvoiceEvent(events.EventInvoiceCancelled, invoice)
}

func (r *Reconciler) markOverdueInvoices(ctx context.Context) int {
	now := r.now()
	overdue, err := r.invoices.FindOverdueInvoices(ctx, now)
	if err != nil {
		r.logger.Error().Err(err).Msg("overdue invoices query failed")
		return 0
	}

	count := 0
	for _, invoice := range overdue {
		if err := r.markInvoiceOverdue(ctx, invoice, now); err != nil {
			r.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("mark invoice overdue failed")
			continue
		}
		count++
	}
	return count
}

func (r *Reconciler) markInvoiceOverdue(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	if err := invoice.MarkOverdue(now); err != nil {
		return nil
	}
	if err := r.invoices.UpdateInvoice(ctx, invoice); err != nil {
		return fmt.Errorf("persist overdue invoice: %w", err)
	}

	metrics.IncTransition("invoice", invoice.Status)
	r.publishInvoiceEvent(events.EventInvoiceOverdue, invoice)
	r.notify(ctx, invoice.UserID, "invoice_overdue", "Invoice overdue",
		fmt.Sprintf("Invoice %s is past its due date", invoice.Number),
		map[string]string{"invoice_id": invoice.ID})

	r.cancelLinkedBooking(ctx, invoice, now)
	return nil
}

func (r *Reconciler) cancelLinkedBooking(ctx context.Context, invoice *models.Invoice, now time.Time) {
	if invoice.BookingID == "" {
		return
	}

	booking, err := r.bookings.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		r.logger.Error().Err(err).Str("booking_id", invoice.BookingID).Msg("cascade booking lookup failed")
		return
	}
	switch booking.Status {
	case models.BookingStatusPending, models.BookingStatusPaymentPending:
	default:
		return
	}
	if err := booking.Cancel(now); err != nil {
		return
	}
	if err := r.bookings.UpdateBooking(ctx, booking); err != nil {
		r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("cascade booking cancel failed")
		return
	}
	metrics.IncTransition("booking", booking.Status)
	r.publishBookingEvent(events.EventBookingCancelled, booking)
}

func (r *Reconciler) publishBookingEvent(eventType string, booking *models.Booking) {
	if r.eventBus == nil {
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
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (r *Reconciler) publishInvoiceEvent(eventType string, invoice *models.Invoice) {
	if r.eventBus == nil {
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
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Str("invoice_id", invoice.ID).Msg("publish event error")
	}
}

func (r *Reconciler) notify(ctx context.Context, userID, notifType, title, message string, metadata map[string]string) {
	if r.notifier == nil {
		return
	}
	notification := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: r.now(),
	}
	if err := r.notifier.Enqueue(ctx, notification); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("notification enqueue error")
	}
}
