package service

import (
	"context"
	"time"

	"reserva/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookings) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookings) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookings) FindOverlapping(ctx context.Context, itemID string, period models.Period, excludeID string) ([]*models.Booking, error) {
	args := m.Called(ctx, itemID, period, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookings) FindOverdueBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookings) GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookings) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockInvoices struct {
	mock.Mock
}

func (m *mockInvoices) CreateInvoice(ctx context.Context, i *models.Invoice) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockInvoices) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoices) GetInvoiceByBooking(ctx context.Context, bookingID string) (*models.Invoice, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoices) UpdateInvoice(ctx context.Context, i *models.Invoice) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockInvoices) FindOverdueInvoices(ctx context.Context, now time.Time) ([]*models.Invoice, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPayments) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *mockPayments) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPayments) GetPaymentsByInvoice(ctx context.Context, invoiceID string) ([]*models.Payment, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockResources struct {
	mock.Mock
}

func (m *mockResources) GetResourceByID(ctx context.Context, id string) (*models.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}
func (m *mockResources) GetResourceItemByID(ctx context.Context, id string) (*models.ResourceItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResourceItem), args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, itemID string, period models.Period, ttl time.Duration, maxRetries int) (bool, string, error) {
	args := m.Called(ctx, itemID, period, ttl, maxRetries)
	return args.Bool(0), args.String(1), args.Error(2)
}
func (m *mockLocker) Release(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockPricing struct {
	mock.Mock
}

func (m *mockPricing) Calculate(ctx context.Context, resourceType string, basePrice float64, currency string, period models.Period) (models.PriceSnapshot, error) {
	args := m.Called(ctx, resourceType, basePrice, currency, period)
	return args.Get(0).(models.PriceSnapshot), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Enqueue(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) RecordCreate(ctx context.Context, userID, domainName, entityType, entityID string, newValues interface{}) error {
	return m.Called(ctx, userID, domainName, entityType, entityID, newValues).Error(0)
}
func (m *mockAudit) RecordUpdate(ctx context.Context, userID, domainName, entityType, entityID string, oldValues, newValues interface{}) error {
	return m.Called(ctx, userID, domainName, entityType, entityID, oldValues, newValues).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}
