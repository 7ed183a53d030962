package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reserva/internal/models"
)

const paymentColumns = `id, user_id, invoice_id, method, status, amount, currency,
                 approved_by, approved_at, completed_at, failed_at, cancelled_at,
                 refunded_at, failure_reason, created_at, updated_at`

func (db *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		payment.ID,
		payment.UserID,
		payment.InvoiceID,
		payment.Method,
		payment.Status,
		payment.Amount,
		payment.Currency,
		nullableString(payment.ApprovedBy),
		formatNullableTime(payment.ApprovedAt),
		formatNullableTime(payment.CompletedAt),
		formatNullableTime(payment.FailedAt),
		formatNullableTime(payment.CancelledAt),
		formatNullableTime(payment.RefundedAt),
		nullableString(payment.FailureReason),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

func (db *DB) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payment, err := scanPayment(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (db *DB) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	query := `UPDATE payments
	          SET status = ?, approved_by = ?, approved_at = ?, completed_at = ?,
	              failed_at = ?, cancelled_at = ?, refunded_at = ?, failure_reason = ?,
	              updated_at = ?
	          WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		payment.Status,
		nullableString(payment.ApprovedBy),
		formatNullableTime(payment.ApprovedAt),
		formatNullableTime(payment.CompletedAt),
		formatNullableTime(payment.FailedAt),
		formatNullableTime(payment.CancelledAt),
		formatNullableTime(payment.RefundedAt),
		nullableString(payment.FailureReason),
		now,
		payment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	payment.UpdatedAt = now
	return nil
}

func (db *DB) GetPaymentsByInvoice(ctx context.Context, invoiceID string) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by invoice: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var approvedBy, failureReason sql.NullString
	var approvedAt, completedAt, failedAt, cancelledAt, refundedAt sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &p.InvoiceID, &p.Method, &p.Status,
		&p.Amount, &p.Currency,
		&approvedBy, &approvedAt, &completedAt, &failedAt, &cancelledAt, &refundedAt,
		&failureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ApprovedBy = approvedBy.String
	p.FailureReason = failureReason.String
	if p.ApprovedAt, err = parseNullableTime(approvedAt); err != nil {
		return nil, err
	}
	if p.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	if p.FailedAt, err = parseNullableTime(failedAt); err != nil {
		return nil, err
	}
	if p.CancelledAt, err = parseNullableTime(cancelledAt); err != nil {
		return nil, err
	}
	if p.RefundedAt, err = parseNullableTime(refundedAt); err != nil {
		return nil, err
	}
	return p, nil
}
