package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reserva/internal/models"
)

const bookingColumns = `id, user_id, resource_id, resource_item_id, start_at, end_at,
                 base_price, commission, total_price, currency, status,
                 payment_deadline, invoice_id, notes, created_at, updated_at, version`

// activeStatusArgs feeds the status IN (...) filters of the overlap queries
// from the canonical slot-occupying status list.
func activeStatusArgs() []interface{} {
	args := make([]interface{}, len(models.ActiveBookingStatuses))
	for i, s := range models.ActiveBookingStatuses {
		args[i] = s
	}
	return args
}

// CreateBooking inserts a booking after re-checking overlap inside the same
// transaction. This is the authoritative exclusion layer: even if the
// advisory lock failed (crashed holder, expired TTL, no shared redis), two
// overlapping active bookings can never both commit.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	queryCount := `SELECT COUNT(*) FROM bookings
	               WHERE resource_item_id = ?
	                 AND status IN (?, ?, ?)
	                 AND start_at < ? AND ? < end_at`
	args := append([]interface{}{booking.ResourceItemID}, activeStatusArgs()...)
	args = append(args, formatTime(booking.Period.End), formatTime(booking.Period.Start))
	var conflicting int
	err = tx.QueryRowContext(ctx, queryCount, args...).Scan(&conflicting)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if conflicting > 0 {
		return ErrPeriodOverlap
	}

	queryInsert := `INSERT INTO bookings (` + bookingColumns + `)
	                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID,
		booking.UserID,
		booking.ResourceID,
		booking.ResourceItemID,
		formatTime(booking.Period.Start),
		formatTime(booking.Period.End),
		booking.Price.BasePrice,
		booking.Price.Commission,
		booking.Price.TotalPrice,
		booking.Price.Currency,
		booking.Status,
		formatTime(booking.PaymentDeadline),
		nullableString(booking.InvoiceID),
		booking.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBooking persists status/invoice/notes changes with an optimistic
// version check. The caller's in-memory Version must match the stored row.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings
	          SET status = ?, invoice_id = ?, notes = ?, payment_deadline = ?,
	              version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.Status,
		nullableString(booking.InvoiceID),
		booking.Notes,
		formatTime(booking.PaymentDeadline),
		now,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	booking.Version++
	booking.UpdatedAt = now
	return nil
}

// FindOverlapping is the advisory read: active bookings whose half-open
// window intersects the requested one.
func (db *DB) FindOverlapping(ctx context.Context, resourceItemID string, period models.Period, excludeBookingID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE resource_item_id = ?
	            AND status IN (?, ?, ?)
	            AND start_at < ? AND ? < end_at
	            AND id != ?
	          ORDER BY start_at ASC`
	args := append([]interface{}{resourceItemID}, activeStatusArgs()...)
	args = append(args, formatTime(period.End), formatTime(period.Start), excludeBookingID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// FindOverdueBookings returns bookings still awaiting payment whose deadline
// has passed.
func (db *DB) FindOverdueBookings(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE status IN (?, ?) AND payment_deadline < ?
	          ORDER BY payment_deadline ASC`
	rows, err := db.QueryContext(ctx, query,
		models.BookingStatusPending, models.BookingStatusPaymentPending,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE start_at < ? AND ? < end_at
	          ORDER BY start_at ASC`
	rows, err := db.QueryContext(ctx, query, formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by range: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE user_id = ? ORDER BY start_at DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var startStr, endStr, deadlineStr string
	var invoiceID, notes sql.NullString
	err := row.Scan(
		&b.ID, &b.UserID, &b.ResourceID, &b.ResourceItemID,
		&startStr, &endStr,
		&b.Price.BasePrice, &b.Price.Commission, &b.Price.TotalPrice, &b.Price.Currency,
		&b.Status, &deadlineStr, &invoiceID, &notes,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if b.Period.Start, err = parseTime(startStr); err != nil {
		return nil, fmt.Errorf("failed to parse booking start %s: %w", startStr, err)
	}
	if b.Period.End, err = parseTime(endStr); err != nil {
		return nil, fmt.Errorf("failed to parse booking end %s: %w", endStr, err)
	}
	if b.PaymentDeadline, err = parseTime(deadlineStr); err != nil {
		return nil, fmt.Errorf("failed to parse payment deadline %s: %w", deadlineStr, err)
	}
	b.InvoiceID = invoiceID.String
	b.Notes = notes.String
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
