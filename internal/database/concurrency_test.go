package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reserva/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCreateBooking(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			booking := &models.Booking{
				ID:              uuid.NewString(),
				UserID:          uuid.NewString(),
				ResourceID:      "resource-1",
				ResourceItemID:  "item-1",
				Period:          models.Period{Start: start, End: end},
				Price:           models.PriceSnapshot{BasePrice: 100, TotalPrice: 100, Currency: "USD"},
				Status:          models.BookingStatusPending,
				PaymentDeadline: time.Now().Add(10 * time.Minute),
			}
			results <- db.CreateBooking(ctx, booking)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	overlapCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrPeriodOverlap):
			overlapCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// The tx-scoped exclusion must let exactly one writer through.
	assert.Equal(t, 1, successCount, "only one booking should succeed for the same window")
	assert.Equal(t, numGoroutines-1, overlapCount)

	stored, err := db.FindOverlapping(ctx, "item-1", models.Period{Start: start, End: end}, "")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
