package database

import (
	"context"
	"testing"
	"time"

	"reserva/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvoice(userID string) *models.Invoice {
	inv := &models.Invoice{
		ID:       uuid.NewString(),
		Number:   "INV-" + uuid.NewString()[:8],
		UserID:   userID,
		Status:   models.InvoiceStatusDraft,
		Currency: "USD",
		Items: []models.InvoiceItem{
			{ResourceID: "resource-1", Description: "Room A, 2h", Quantity: 2, UnitPrice: 50, TotalPrice: 100},
		},
	}
	inv.Recalculate(0.1)
	return inv
}

func TestInvoice_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inv := testInvoice("user-1")
	inv.BookingID = "booking-77"
	require.NoError(t, db.CreateInvoice(ctx, inv))

	loaded, err := db.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, loaded.Number)
	assert.Equal(t, models.InvoiceStatusDraft, loaded.Status)
	require.Len(t, loaded.Items, 1)
	assert.InDelta(t, 100, loaded.Subtotal, 0.001)
	assert.InDelta(t, 110, loaded.TotalAmount, 0.001)
	assert.Equal(t, "booking-77", loaded.BookingID)
	assert.True(t, loaded.AmountsConsistent())

	byBooking, err := db.GetInvoiceByBooking(ctx, "booking-77")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byBooking.ID)

	_, err = db.GetInvoice(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoice_UniqueNumber(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := testInvoice("user-1")
	require.NoError(t, db.CreateInvoice(ctx, first))

	dup := testInvoice("user-2")
	dup.Number = first.Number
	assert.Error(t, db.CreateInvoice(ctx, dup))
}

func TestInvoice_UpdateWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inv := testInvoice("user-1")
	require.NoError(t, db.CreateInvoice(ctx, inv))

	now := time.Now()
	require.NoError(t, inv.Finalize(now.AddDate(0, 0, 7), now))
	require.NoError(t, db.UpdateInvoice(ctx, inv))
	assert.Equal(t, int64(2), inv.Version)

	stale := *inv
	stale.Version = 1
	assert.ErrorIs(t, db.UpdateInvoice(ctx, &stale), ErrConcurrentModification)
}

func TestFindOverdueInvoices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	overdue := testInvoice("user-1")
	require.NoError(t, db.CreateInvoice(ctx, overdue))
	require.NoError(t, overdue.Finalize(now.Add(-time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, db.UpdateInvoice(ctx, overdue))

	fresh := testInvoice("user-2")
	require.NoError(t, db.CreateInvoice(ctx, fresh))
	require.NoError(t, fresh.Finalize(now.Add(time.Hour), now))
	require.NoError(t, db.UpdateInvoice(ctx, fresh))

	draft := testInvoice("user-3")
	require.NoError(t, db.CreateInvoice(ctx, draft))

	found, err := db.FindOverdueInvoices(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, overdue.ID, found[0].ID)
}
