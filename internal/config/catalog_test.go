package config

import (
	"os"
	"path/filepath"
	"testing"

	"reserva/internal/models"
)

const testCatalogYAML = `
resources:
  - id: rooms
    name: Meeting rooms
    type: room
    base_price: 50
    currency: USD
    is_active: true
items:
  - id: room-1
    resource_id: rooms
    name: Room 1
    is_active: true
  - id: room-2
    resource_id: rooms
    name: Room 2
    is_active: true
`

func writeTestCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(writeTestCatalog(t, testCatalogYAML))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	if len(catalog.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(catalog.Resources))
	}
	if catalog.Resources[0].BasePrice != 50 {
		t.Errorf("expected base price 50, got %v", catalog.Resources[0].BasePrice)
	}
	if len(catalog.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(catalog.Items))
	}
	if catalog.Items[1].ResourceID != "rooms" {
		t.Errorf("expected item resource 'rooms', got %q", catalog.Items[1].ResourceID)
	}
}

func TestValidateCatalog(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Catalog)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Catalog) {}},
		{
			name:    "missing resource id",
			mutate:  func(c *Catalog) { c.Resources[0].ID = "" },
			wantErr: true,
		},
		{
			name:    "duplicate item id",
			mutate:  func(c *Catalog) { c.Items[1].ID = c.Items[0].ID },
			wantErr: true,
		},
		{
			name:    "item references unknown resource",
			mutate:  func(c *Catalog) { c.Items[0].ResourceID = "nope" },
			wantErr: true,
		},
		{
			name:    "negative base price",
			mutate:  func(c *Catalog) { c.Resources[0].BasePrice = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &Catalog{
				Resources: []models.Resource{
					{ID: "rooms", Name: "Meeting rooms", Type: "room", BasePrice: 50, Currency: "USD"},
				},
				Items: []models.ResourceItem{
					{ID: "room-1", ResourceID: "rooms", Name: "Room 1"},
					{ID: "room-2", ResourceID: "rooms", Name: "Room 2"},
				},
			}
			tt.mutate(catalog)

			err := ValidateCatalog(catalog)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
