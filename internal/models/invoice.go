package models

import (
	"math"
	"time"
)

type InvoiceItem struct {
	ResourceID     string  `json:"resource_id"`
	ResourceItemID string  `json:"resource_item_id,omitempty"`
	Description    string  `json:"description"`
	Quantity       int64   `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	TotalPrice     float64 `json:"total_price"` // always Quantity * UnitPrice
}

type Invoice struct {
	ID             string        `json:"id"`
	Number         string        `json:"number"` // unique, generated
	UserID         string        `json:"user_id"`
	Status         string        `json:"status"` // draft, pending, paid, overdue, cancelled, refunded
	Items          []InvoiceItem `json:"items"`
	Subtotal       float64       `json:"subtotal"`
	TaxAmount      float64       `json:"tax_amount"`
	DiscountAmount float64       `json:"discount_amount"`
	TotalAmount    float64       `json:"total_amount"`
	Currency       string        `json:"currency"`
	DueDate        time.Time     `json:"due_date"`
	BookingID      string        `json:"booking_id,omitempty"` // correlation id, no ownership
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"version"`
}

// Recalculate rebuilds item totals and invoice amounts from the line items.
// Must run after every item change: total = subtotal + tax - discount.
func (i *Invoice) Recalculate(taxRate float64) {
	var subtotal float64
	for idx := range i.Items {
		item := &i.Items[idx]
		item.TotalPrice = float64(item.Quantity) * item.UnitPrice
		subtotal += item.TotalPrice
	}
	i.Subtotal = subtotal
	i.TaxAmount = subtotal * taxRate
	i.TotalAmount = i.Subtotal + i.TaxAmount - i.DiscountAmount
}

// AmountsConsistent verifies the invoice invariant within AmountTolerance.
func (i *Invoice) AmountsConsistent() bool {
	for _, item := range i.Items {
		if math.Abs(item.TotalPrice-float64(item.Quantity)*item.UnitPrice) > AmountTolerance {
			return false
		}
	}
	return math.Abs(i.TotalAmount-(i.Subtotal+i.TaxAmount-i.DiscountAmount)) <= AmountTolerance
}

// AddItem appends a line item and recalculates amounts.
func (i *Invoice) AddItem(item InvoiceItem, taxRate float64, now time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return ErrInvalidStatus
	}
	i.Items = append(i.Items, item)
	i.Recalculate(taxRate)
	i.UpdatedAt = now
	return nil
}

// Finalize issues the draft: draft -> pending with a due date.
func (i *Invoice) Finalize(dueDate time.Time, now time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return ErrInvalidStatus
	}
	i.Status = InvoiceStatusPending
	i.DueDate = dueDate
	i.UpdatedAt = now
	return nil
}

// MarkPaid is allowed from pending and overdue.
func (i *Invoice) MarkPaid(now time.Time) error {
	switch i.Status {
	case InvoiceStatusPending, InvoiceStatusOverdue:
		i.Status = InvoiceStatusPaid
		i.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

// MarkOverdue is allowed from pending only.
func (i *Invoice) MarkOverdue(now time.Time) error {
	if i.Status != InvoiceStatusPending {
		return ErrInvalidStatus
	}
	i.Status = InvoiceStatusOverdue
	i.UpdatedAt = now
	return nil
}

// Cancel is allowed from draft, pending and overdue.
func (i *Invoice) Cancel(now time.Time) error {
	switch i.Status {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusOverdue:
		i.Status = InvoiceStatusCancelled
		i.UpdatedAt = now
		return nil
	}
	return ErrInvalidStatus
}

// Refund is allowed from paid only.
func (i *Invoice) Refund(now time.Time) error {
	if i.Status != InvoiceStatusPaid {
		return ErrInvalidStatus
	}
	i.Status = InvoiceStatusRefunded
	i.UpdatedAt = now
	return nil
}

// IsTerminal reports whether no further transition is permitted.
func (i *Invoice) IsTerminal() bool {
	switch i.Status {
	case InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	}
	return false
}
