package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"reserva/internal/models"
)

const invoiceColumns = `id, number, user_id, status, items, subtotal, tax_amount,
                 discount_amount, total_amount, currency, due_date, booking_id,
                 created_at, updated_at, version`

func (db *DB) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := `INSERT INTO invoices (` + invoiceColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	var dueDate interface{}
	if !invoice.DueDate.IsZero() {
		dueDate = formatTime(invoice.DueDate)
	}
	_, err = db.ExecContext(ctx, query,
		invoice.ID,
		invoice.Number,
		invoice.UserID,
		invoice.Status,
		string(items),
		invoice.Subtotal,
		invoice.TaxAmount,
		invoice.DiscountAmount,
		invoice.TotalAmount,
		invoice.Currency,
		dueDate,
		nullableString(invoice.BookingID),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	invoice.Version = 1
	return nil
}

func (db *DB) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	invoice, err := scanInvoice(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

func (db *DB) GetInvoiceByBooking(ctx context.Context, bookingID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE booking_id = ?`
	invoice, err := scanInvoice(db.QueryRowContext(ctx, query, bookingID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by booking: %w", err)
	}
	return invoice, nil
}

func (db *DB) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := `UPDATE invoices
	          SET status = ?, items = ?, subtotal = ?, tax_amount = ?,
	              discount_amount = ?, total_amount = ?, due_date = ?, booking_id = ?,
	              version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	now := time.Now()
	var dueDate interface{}
	if !invoice.DueDate.IsZero() {
		dueDate = formatTime(invoice.DueDate)
	}
	result, err := db.ExecContext(ctx, query,
		invoice.Status,
		string(items),
		invoice.Subtotal,
		invoice.TaxAmount,
		invoice.DiscountAmount,
		invoice.TotalAmount,
		dueDate,
		nullableString(invoice.BookingID),
		now,
		invoice.ID,
		invoice.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	invoice.Version++
	invoice.UpdatedAt = now
	return nil
}

// FindOverdueInvoices returns pending invoices whose due date has passed.
func (db *DB) FindOverdueInvoices(ctx context.Context, now time.Time) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
	          WHERE status = ? AND due_date IS NOT NULL AND due_date < ?
	          ORDER BY due_date ASC`
	rows, err := db.QueryContext(ctx, query, models.InvoiceStatusPending, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// GetInvoicesByRange returns invoices created inside [start, end), used by
// the register export.
func (db *DB) GetInvoicesByRange(ctx context.Context, start, end time.Time) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
	          WHERE created_at >= ? AND created_at < ?
	          ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoices by range: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	var items string
	var dueDate, bookingID sql.NullString
	err := row.Scan(
		&invoice.ID, &invoice.Number, &invoice.UserID, &invoice.Status,
		&items, &invoice.Subtotal, &invoice.TaxAmount,
		&invoice.DiscountAmount, &invoice.TotalAmount, &invoice.Currency,
		&dueDate, &bookingID,
		&invoice.CreatedAt, &invoice.UpdatedAt, &invoice.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &invoice.Items); err != nil {
		return nil, fmt.Errorf("failed to decode invoice items: %w", err)
	}
	if dueDate.Valid && dueDate.String != "" {
		if invoice.DueDate, err = parseTime(dueDate.String); err != nil {
			return nil, fmt.Errorf("failed to parse invoice due date %s: %w", dueDate.String, err)
		}
	}
	invoice.BookingID = bookingID.String
	return invoice, nil
}
