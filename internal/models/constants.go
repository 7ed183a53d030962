package models

const (
	BookingStatusPending        = "pending"
	BookingStatusPaymentPending = "payment_pending"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusCancelled      = "cancelled"
	BookingStatusExpired        = "expired"
	BookingStatusCompleted      = "completed"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusRefunded  = "refunded"
)

const (
	PaymentMethodCard     = "card"
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "bank_transfer"
)

const (
	// DefaultPaymentDeadlineMinutes срок оплаты брони с момента создания
	DefaultPaymentDeadlineMinutes = 10

	// DefaultLockTTLSeconds время жизни слот-блокировки в Redis
	DefaultLockTTLSeconds = 30

	// DefaultLockMaxRetries число попыток захвата слот-блокировки
	DefaultLockMaxRetries = 3

	// DefaultExpiryIntervalSeconds период запуска фоновой сверки просрочек
	DefaultExpiryIntervalSeconds = 60

	// DefaultInvoiceDueDays срок оплаты счета по умолчанию
	DefaultInvoiceDueDays = 7

	// AmountTolerance допустимая погрешность денежных сумм
	AmountTolerance = 0.01

	// NotifyQueueSize размер очереди уведомлений в памяти
	NotifyQueueSize = 1000
)

// ActiveBookingStatuses are the statuses that occupy a slot. Only bookings in
// one of these states participate in overlap checks.
var ActiveBookingStatuses = []string{
	BookingStatusPending,
	BookingStatusPaymentPending,
	BookingStatusConfirmed,
}
