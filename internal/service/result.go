package service

import "reserva/internal/models"

// Business outcomes are returned as result values with an error code, not as
// Go errors. Callers branch on the code to decide between retrying (locked),
// picking another slot (reserved) or showing a validation message. Plain
// error returns are reserved for infrastructure failures.
const (
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeResourceNotFound     = "RESOURCE_NOT_FOUND"
	ErrCodeResourceItemNotFound = "RESOURCE_ITEM_NOT_FOUND"
	ErrCodeResourceItemMismatch = "RESOURCE_ITEM_MISMATCH"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeStartDateInPast      = "START_DATE_IN_PAST"
	ErrCodePeriodLocked         = "PERIOD_LOCKED"
	ErrCodePeriodReserved       = "PERIOD_ALREADY_RESERVED"
	ErrCodeBookingCreateFailed  = "BOOKING_CREATION_FAILED"
	ErrCodeBookingNotFound      = "BOOKING_NOT_FOUND"
	ErrCodeInvalidBookingStatus = "INVALID_BOOKING_STATUS"

	ErrCodeInvoiceNotFound      = "INVOICE_NOT_FOUND"
	ErrCodeInvalidInvoiceStatus = "INVALID_INVOICE_STATUS"
	ErrCodeInvoiceEmpty         = "INVOICE_EMPTY"

	ErrCodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidPaymentStatus = "INVALID_PAYMENT_STATUS"
	ErrCodeApproverRequired     = "APPROVER_REQUIRED"
)

type BookingResult struct {
	Success bool            `json:"success"`
	Booking *models.Booking `json:"booking,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func bookingFailure(code string) BookingResult {
	return BookingResult{Error: code}
}

func bookingSuccess(b *models.Booking) BookingResult {
	return BookingResult{Success: true, Booking: b}
}

type InvoiceResult struct {
	Success bool            `json:"success"`
	Invoice *models.Invoice `json:"invoice,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func invoiceFailure(code string) InvoiceResult {
	return InvoiceResult{Error: code}
}

func invoiceSuccess(i *models.Invoice) InvoiceResult {
	return InvoiceResult{Success: true, Invoice: i}
}

type PaymentResult struct {
	Success bool            `json:"success"`
	Payment *models.Payment `json:"payment,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func paymentFailure(code string) PaymentResult {
	return PaymentResult{Error: code}
}

func paymentSuccess(p *models.Payment) PaymentResult {
	return PaymentResult{Success: true, Payment: p}
}

// AvailabilityResult is the answer to a CheckAvailability call. Advisory
// only: the storage overlap check remains the final arbiter at insert time.
type AvailabilityResult struct {
	IsAvailable bool              `json:"is_available"`
	Conflicting []*models.Booking `json:"conflicting,omitempty"`
}
