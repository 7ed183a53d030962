package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	svc       *BookingService
	bookings  *mockBookings
	invoices  *mockInvoices
	users     *mockUsers
	resources *mockResources
	locker    *mockLocker
	pricing   *mockPricing
	notifier  *mockNotifier
	audit     *mockAudit
	bus       *mockEventBus
	now       time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		bookings:  new(mockBookings),
		invoices:  new(mockInvoices),
		users:     new(mockUsers),
		resources: new(mockResources),
		locker:    new(mockLocker),
		pricing:   new(mockPricing),
		notifier:  new(mockNotifier),
		audit:     new(mockAudit),
		bus:       new(mockEventBus),
		now:       time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC),
	}

	logger := zerolog.New(io.Discard)
	f.svc = NewBookingService(BookingDeps{
		Bookings:  f.bookings,
		Invoices:  f.invoices,
		Users:     f.users,
		Resources: f.resources,
		Locker:    f.locker,
		Pricing:   f.pricing,
		Notifier:  f.notifier,
		Audit:     f.audit,
		EventBus:  f.bus,
	}, config.BookingConfig{PaymentDeadlineMinutes: 10, LockTTLSeconds: 30, LockMaxRetries: 3, MaxAdvanceDays: 365}, &logger)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *bookingFixture) window() models.Period {
	return models.Period{
		Start: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
	}
}

func (f *bookingFixture) request() CreateBookingRequest {
	return CreateBookingRequest{
		UserID:         "u-1",
		ResourceID:     "res-1",
		ResourceItemID: "item-1",
		Period:         f.window(),
	}
}

func (f *bookingFixture) expectLookups(ctx context.Context) {
	f.users.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1", Name: "Alice"}, nil).Once()
	f.resources.On("GetResourceByID", ctx, "res-1").Return(&models.Resource{
		ID: "res-1", Type: "room", BasePrice: 100, Currency: "USD",
	}, nil).Once()
	f.resources.On("GetResourceItemByID", ctx, "item-1").Return(&models.ResourceItem{
		ID: "item-1", ResourceID: "res-1",
	}, nil).Once()
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newBookingFixture(t)
		f.expectLookups(ctx)

		snapshot := models.PriceSnapshot{BasePrice: 100, Commission: 10, TotalPrice: 110, Currency: "USD"}
		f.locker.On("Acquire", ctx, "item-1", f.window(), 30*time.Second, 3).Return(true, "tok-1", nil).Once()
		f.pricing.On("Calculate", ctx, "room", 100.0, "USD", f.window()).Return(snapshot, nil).Once()
		f.bookings.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		f.audit.On("RecordCreate", ctx, "u-1", "booking", "booking", mock.Anything, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()
		f.notifier.On("Enqueue", ctx, mock.Anything).Return(nil).Once()
		f.locker.On("Release", ctx, "tok-1").Return(nil).Once()

		result, err := f.svc.CreateBooking(ctx, f.request())
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, models.BookingStatusPending, result.Booking.Status)
		assert.Equal(t, f.now.Add(10*time.Minute), result.Booking.PaymentDeadline)
		assert.Equal(t, snapshot, result.Booking.Price)
		assert.NotEmpty(t, result.Booking.ID)

		f.locker.AssertExpectations(t)
		f.bookings.AssertExpectations(t)
	})

	t.Run("PeriodAlreadyReserved", func(t *testing.T) {
		f := newBookingFixture(t)
		f.expectLookups(ctx)

		f.locker.On("Acquire", ctx, "item-1", f.window(), 30*time.Second, 3).Return(true, "tok-2", nil).Once()
		f.pricing.On("Calculate", ctx, "room", 100.0, "USD", f.window()).
			Return(models.PriceSnapshot{TotalPrice: 110, Currency: "USD"}, nil).Once()
		f.bookings.On("CreateBooking", ctx, mock.Anything).Return(database.ErrPeriodOverlap).Once()
		f.locker.On("Release", ctx, "tok-2").Return(nil).Once()

		result, err := f.svc.CreateBooking(ctx, f.request())
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, ErrCodePeriodReserved, result.Error)

		// The lock must be freed even though the insert was rejected.
		f.locker.AssertExpectations(t)
	})

	t.Run("PeriodLocked", func(t *testing.T) {
		f := newBookingFixture(t)
		f.expectLookups(ctx)

		f.locker.On("Acquire", ctx, "item-1", f.window(), 30*time.Second, 3).Return(false, "", nil).Once()

		result, err := f.svc.CreateBooking(ctx, f.request())
		require.NoError(t, err)
		assert.Equal(t, ErrCodePeriodLocked, result.Error)
		f.locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("LockReleasedOnPricingError", func(t *testing.T) {
		f := newBookingFixture(t)
		f.expectLookups(ctx)

		f.locker.On("Acquire", ctx, "item-1", f.window(), 30*time.Second, 3).Return(true, "tok-3", nil).Once()
		f.pricing.On("Calculate", ctx, "room", 100.0, "USD", f.window()).
			Return(models.PriceSnapshot{}, errors.New("tariff service down")).Once()
		f.locker.On("Release", ctx, "tok-3").Return(nil).Once()

		_, err := f.svc.CreateBooking(ctx, f.request())
		require.Error(t, err)
		f.locker.AssertExpectations(t)
	})

	t.Run("InvalidDateRange", func(t *testing.T) {
		f := newBookingFixture(t)
		req := f.request()
		req.Period.End = req.Period.Start

		result, err := f.svc.CreateBooking(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ErrCodeInvalidDateRange, result.Error)
		f.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StartDateInPast", func(t *testing.T) {
		f := newBookingFixture(t)
		req := f.request()
		req.Period.Start = f.now.Add(-time.Hour)
		req.Period.End = f.now.Add(time.Hour)

		result, err := f.svc.CreateBooking(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ErrCodeStartDateInPast, result.Error)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		f := newBookingFixture(t)
		f.users.On("GetUserByID", ctx, "u-1").Return(nil, database.ErrNotFound).Once()

		result, err := f.svc.CreateBooking(ctx, f.request())
		require.NoError(t, err)
		assert.Equal(t, ErrCodeUserNotFound, result.Error)
	})

	t.Run("ResourceItemMismatch", func(t *testing.T) {
		f := newBookingFixture(t)
		f.users.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil).Once()
		f.resources.On("GetResourceByID", ctx, "res-1").Return(&models.Resource{ID: "res-1"}, nil).Once()
		f.resources.On("GetResourceItemByID", ctx, "item-1").Return(&models.ResourceItem{
			ID: "item-1", ResourceID: "res-other",
		}, nil).Once()

		result, err := f.svc.CreateBooking(ctx, f.request())
		require.NoError(t, err)
		assert.Equal(t, ErrCodeResourceItemMismatch, result.Error)
		f.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("Confirm", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{ID: "b-1", UserID: "u-1", Status: models.BookingStatusPending}

		f.bookings.On("GetBooking", ctx, "b-1").Return(booking, nil).Once()
		f.bookings.On("UpdateBooking", ctx, booking).Return(nil).Once()
		f.audit.On("RecordUpdate", ctx, "u-1", "booking", "booking", "b-1", mock.Anything, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		result, err := f.svc.ConfirmBooking(ctx, "b-1")
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, models.BookingStatusConfirmed, result.Booking.Status)
	})

	t.Run("CancelAlreadyCancelled", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{ID: "b-2", Status: models.BookingStatusCancelled}

		f.bookings.On("GetBooking", ctx, "b-2").Return(booking, nil).Once()

		result, err := f.svc.CancelBooking(ctx, "b-2", "changed plans")
		require.NoError(t, err)
		assert.Equal(t, ErrCodeInvalidBookingStatus, result.Error)
		f.bookings.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
	})

	t.Run("ConfirmExpired", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{ID: "b-3", Status: models.BookingStatusExpired}

		f.bookings.On("GetBooking", ctx, "b-3").Return(booking, nil).Once()

		result, err := f.svc.ConfirmBooking(ctx, "b-3")
		require.NoError(t, err)
		assert.Equal(t, ErrCodeInvalidBookingStatus, result.Error)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newBookingFixture(t)
		f.bookings.On("GetBooking", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		result, err := f.svc.ConfirmBooking(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, ErrCodeBookingNotFound, result.Error)
	})

	t.Run("ExpireBeforeDeadline", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{
			ID:              "b-4",
			Status:          models.BookingStatusPending,
			PaymentDeadline: f.now.Add(5 * time.Minute),
		}

		f.bookings.On("GetBooking", ctx, "b-4").Return(booking, nil).Once()

		result, err := f.svc.ExpireBooking(ctx, "b-4")
		require.NoError(t, err)
		assert.Equal(t, ErrCodeInvalidBookingStatus, result.Error)
	})

	t.Run("CompleteFromConfirmedOnly", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{ID: "b-5", UserID: "u-1", Status: models.BookingStatusConfirmed}

		f.bookings.On("GetBooking", ctx, "b-5").Return(booking, nil).Once()
		f.bookings.On("UpdateBooking", ctx, booking).Return(nil).Once()
		f.audit.On("RecordUpdate", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		result, err := f.svc.CompleteBooking(ctx, "b-5")
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, models.BookingStatusCompleted, result.Booking.Status)
	})

	t.Run("CancelCascadesToPendingInvoice", func(t *testing.T) {
		f := newBookingFixture(t)
		booking := &models.Booking{
			ID: "b-6", UserID: "u-1",
			Status:    models.BookingStatusPending,
			InvoiceID: "inv-1",
		}
		invoice := &models.Invoice{ID: "inv-1", UserID: "u-1", Status: models.InvoiceStatusPending}

		f.bookings.On("GetBooking", ctx, "b-6").Return(booking, nil).Once()
		f.bookings.On("UpdateBooking", ctx, booking).Return(nil).Once()
		f.audit.On("RecordUpdate", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
		f.invoices.On("GetInvoice", ctx, "inv-1").Return(invoice, nil).Once()
		f.invoices.On("UpdateInvoice", ctx, invoice).Return(nil).Once()
		f.notifier.On("Enqueue", ctx, mock.Anything).Return(nil).Once()

		result, err := f.svc.CancelBooking(ctx, "b-6", "user request")
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, models.InvoiceStatusCancelled, invoice.Status)
		f.invoices.AssertExpectations(t)
	})
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	window := f.window()

	t.Run("Free", func(t *testing.T) {
		f.bookings.On("FindOverlapping", ctx, "item-1", window, "").Return(nil, nil).Once()

		result, err := f.svc.CheckAvailability(ctx, "item-1", window, "")
		require.NoError(t, err)
		assert.True(t, result.IsAvailable)
		assert.Empty(t, result.Conflicting)
	})

	t.Run("Conflicting", func(t *testing.T) {
		conflict := &models.Booking{ID: "b-9"}
		f.bookings.On("FindOverlapping", ctx, "item-1", window, "").Return([]*models.Booking{conflict}, nil).Once()

		result, err := f.svc.CheckAvailability(ctx, "item-1", window, "")
		require.NoError(t, err)
		assert.False(t, result.IsAvailable)
		assert.Len(t, result.Conflicting, 1)
	})
}
