package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reserva/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, name, email, is_active, created_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	if _, err := db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.IsActive, now); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, email, is_active, created_at FROM users WHERE id = ?`
	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.IsActive, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (db *DB) CreateResource(ctx context.Context, resource *models.Resource) error {
	query := `INSERT INTO resources (id, name, type, base_price, currency, is_active, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		resource.ID, resource.Name, resource.Type,
		resource.BasePrice, resource.Currency, resource.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	resource.CreatedAt = now
	return nil
}

func (db *DB) GetResourceByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT id, name, type, base_price, currency, is_active, created_at
	          FROM resources WHERE id = ?`
	resource := &models.Resource{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&resource.ID, &resource.Name, &resource.Type,
		&resource.BasePrice, &resource.Currency, &resource.IsActive, &resource.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return resource, nil
}

func (db *DB) CreateResourceItem(ctx context.Context, item *models.ResourceItem) error {
	query := `INSERT INTO resource_items (id, resource_id, name, is_active, created_at)
	          VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	if _, err := db.ExecContext(ctx, query, item.ID, item.ResourceID, item.Name, item.IsActive, now); err != nil {
		return fmt.Errorf("failed to create resource item: %w", err)
	}
	item.CreatedAt = now
	return nil
}

func (db *DB) GetResourceItemByID(ctx context.Context, id string) (*models.ResourceItem, error) {
	query := `SELECT id, resource_id, name, is_active, created_at
	          FROM resource_items WHERE id = ?`
	item := &models.ResourceItem{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.ResourceID, &item.Name, &item.IsActive, &item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource item: %w", err)
	}
	return item, nil
}

// SyncCatalog upserts the configured resources and items. Rows removed from
// the catalog are deactivated, not deleted, so history stays intact.
func (db *DB) SyncCatalog(ctx context.Context, resources []models.Resource, items []models.ResourceItem) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog sync: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE resources SET is_active = 0`); err != nil {
		return fmt.Errorf("failed to deactivate resources: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE resource_items SET is_active = 0`); err != nil {
		return fmt.Errorf("failed to deactivate resource items: %w", err)
	}

	resourceQuery := `INSERT INTO resources (id, name, type, base_price, currency, is_active, created_at)
	          VALUES (?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name, type = excluded.type,
	              base_price = excluded.base_price, currency = excluded.currency,
	              is_active = 1`
	for _, r := range resources {
		if _, err := tx.ExecContext(ctx, resourceQuery, r.ID, r.Name, r.Type, r.BasePrice, r.Currency); err != nil {
			return fmt.Errorf("failed to sync resource %s: %w", r.ID, err)
		}
	}

	itemQuery := `INSERT INTO resource_items (id, resource_id, name, is_active, created_at)
	          VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
	          ON CONFLICT(id) DO UPDATE SET
	              resource_id = excluded.resource_id, name = excluded.name, is_active = 1`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, itemQuery, item.ID, item.ResourceID, item.Name); err != nil {
			return fmt.Errorf("failed to sync resource item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) CreateAuditRecord(ctx context.Context, record *models.AuditRecord) error {
	query := `INSERT INTO audit_log (user_id, action, domain, entity_type, entity_id, old_values, new_values, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		record.UserID, record.Action, record.Domain,
		record.EntityType, record.EntityID,
		nullableString(record.OldValues), nullableString(record.NewValues),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	record.ID, _ = result.LastInsertId()
	record.CreatedAt = now
	return nil
}
