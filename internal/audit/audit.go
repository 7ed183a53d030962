package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"reserva/internal/models"

	"github.com/rs/zerolog"
)

// RecordStore persists audit records; implemented by the database layer.
type RecordStore interface {
	CreateAuditRecord(ctx context.Context, record *models.AuditRecord) error
}

// StoreRecorder writes the audit trail to the database. Services call it
// best-effort: a failed audit write never rolls back the business change.
type StoreRecorder struct {
	store RecordStore
}

func NewStoreRecorder(store RecordStore) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) RecordCreate(ctx context.Context, userID, domainName, entityType, entityID string, newValues interface{}) error {
	return r.record(ctx, "create", userID, domainName, entityType, entityID, nil, newValues)
}

func (r *StoreRecorder) RecordUpdate(ctx context.Context, userID, domainName, entityType, entityID string, oldValues, newValues interface{}) error {
	return r.record(ctx, "update", userID, domainName, entityType, entityID, oldValues, newValues)
}

func (r *StoreRecorder) record(ctx context.Context, action, userID, domainName, entityType, entityID string, oldValues, newValues interface{}) error {
	oldJSON, err := marshalValues(oldValues)
	if err != nil {
		return fmt.Errorf("encode old values: %w", err)
	}
	newJSON, err := marshalValues(newValues)
	if err != nil {
		return fmt.Errorf("encode new values: %w", err)
	}

	return r.store.CreateAuditRecord(ctx, &models.AuditRecord{
		UserID:     userID,
		Action:     action,
		Domain:     domainName,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  oldJSON,
		NewValues:  newJSON,
	})
}

func marshalValues(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LogRecorder is the fallback sink: the trail goes to the structured log
// when no store is configured (tests, degraded deployments).
type LogRecorder struct {
	logger *zerolog.Logger
}

func NewLogRecorder(logger *zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) RecordCreate(ctx context.Context, userID, domainName, entityType, entityID string, newValues interface{}) error {
	r.logger.Info().
		Str("audit_action", "create").
		Str("user_id", userID).
		Str("domain", domainName).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Interface("new_values", newValues).
		Msg("audit")
	return nil
}

func (r *LogRecorder) RecordUpdate(ctx context.Context, userID, domainName, entityType, entityID string, oldValues, newValues interface{}) error {
	r.logger.Info().
		Str("audit_action", "update").
		Str("user_id", userID).
		Str("domain", domainName).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Interface("old_values", oldValues).
		Interface("new_values", newValues).
		Msg("audit")
	return nil
}
