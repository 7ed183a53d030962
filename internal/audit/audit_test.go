package audit

import (
	"context"
	"testing"

	"reserva/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureStore struct {
	records []*models.AuditRecord
}

func (s *captureStore) CreateAuditRecord(_ context.Context, record *models.AuditRecord) error {
	s.records = append(s.records, record)
	return nil
}

func TestStoreRecorder(t *testing.T) {
	store := &captureStore{}
	recorder := NewStoreRecorder(store)
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		err := recorder.RecordCreate(ctx, "user-1", "reservation", "booking", "b-1",
			map[string]string{"status": "pending"})
		require.NoError(t, err)
		require.Len(t, store.records, 1)

		rec := store.records[0]
		assert.Equal(t, "create", rec.Action)
		assert.Equal(t, "reservation", rec.Domain)
		assert.Equal(t, "booking", rec.EntityType)
		assert.Equal(t, "b-1", rec.EntityID)
		assert.Empty(t, rec.OldValues)
		assert.JSONEq(t, `{"status":"pending"}`, rec.NewValues)
	})

	t.Run("Update", func(t *testing.T) {
		err := recorder.RecordUpdate(ctx, "user-1", "billing", "invoice", "inv-1",
			map[string]string{"status": "pending"}, map[string]string{"status": "paid"})
		require.NoError(t, err)
		require.Len(t, store.records, 2)

		rec := store.records[1]
		assert.Equal(t, "update", rec.Action)
		assert.JSONEq(t, `{"status":"pending"}`, rec.OldValues)
		assert.JSONEq(t, `{"status":"paid"}`, rec.NewValues)
	})

	t.Run("UnencodableValues", func(t *testing.T) {
		err := recorder.RecordCreate(ctx, "user-1", "reservation", "booking", "b-2", make(chan int))
		assert.Error(t, err)
		assert.Len(t, store.records, 2)
	})
}
