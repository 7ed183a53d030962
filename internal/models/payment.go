package models

import (
	"errors"
	"time"
)

// ErrApproverRequired is returned by Approve when no approver is given.
var ErrApproverRequired = errors.New("approver is required")

type Payment struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	InvoiceID     string     `json:"invoice_id"`
	Method        string     `json:"method"` // card, cash, bank_transfer
	Status        string     `json:"status"` // pending, approved, completed, failed, cancelled, refunded
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MethodRequiresApproval reports whether a payment method needs a manual
// approval step before completion. Only cash does.
func MethodRequiresApproval(method string) bool {
	return method == PaymentMethodCash
}

// Approve records a manual approval. Only meaningful for methods that
// require one.
func (p *Payment) Approve(approver string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrInvalidStatus
	}
	if approver == "" {
		return ErrApproverRequired
	}
	p.Status = PaymentStatusApproved
	p.ApprovedBy = approver
	p.ApprovedAt = &now
	p.UpdatedAt = now
	return nil
}

// Complete finishes the payment. Methods without an approval step complete
// straight from pending.
func (p *Payment) Complete(now time.Time) error {
	switch p.Status {
	case PaymentStatusApproved:
	case PaymentStatusPending:
		if MethodRequiresApproval(p.Method) {
			return ErrInvalidStatus
		}
	default:
		return ErrInvalidStatus
	}
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusApproved:
		p.Status = PaymentStatusFailed
		p.FailureReason = reason
		p.FailedAt = &now
		p.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

func (p *Payment) Cancel(now time.Time) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusApproved:
		p.Status = PaymentStatusCancelled
		p.CancelledAt = &now
		p.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

// Refund is allowed from completed only.
func (p *Payment) Refund(now time.Time) error {
	if p.Status != PaymentStatusCompleted {
		return ErrInvalidStatus
	}
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.UpdatedAt = now
	return nil
}

// IsTerminal reports whether no further transition is permitted.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}
