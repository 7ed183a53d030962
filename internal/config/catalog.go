package config

import (
	"fmt"
	"os"

	"reserva/internal/models"

	"gopkg.in/yaml.v3"
)

// Catalog описывает бронируемые ресурсы и их единицы, загружается из
// отдельного yaml файла и синхронизируется в базу при старте
type Catalog struct {
	Resources []models.Resource     `yaml:"resources"`
	Items     []models.ResourceItem `yaml:"items"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}

	if err := ValidateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &catalog, nil
}

func ValidateCatalog(catalog *Catalog) error {
	resourceIDs := make(map[string]bool, len(catalog.Resources))
	for i, r := range catalog.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource #%d: id is required", i)
		}
		if resourceIDs[r.ID] {
			return fmt.Errorf("resource %s: duplicate id", r.ID)
		}
		resourceIDs[r.ID] = true
		if r.Name == "" {
			return fmt.Errorf("resource %s: name is required", r.ID)
		}
		if r.BasePrice < 0 {
			return fmt.Errorf("resource %s: base price must not be negative", r.ID)
		}
		if r.Currency == "" {
			return fmt.Errorf("resource %s: currency is required", r.ID)
		}
	}

	itemIDs := make(map[string]bool, len(catalog.Items))
	for i, item := range catalog.Items {
		if item.ID == "" {
			return fmt.Errorf("resource item #%d: id is required", i)
		}
		if itemIDs[item.ID] {
			return fmt.Errorf("resource item %s: duplicate id", item.ID)
		}
		itemIDs[item.ID] = true
		if !resourceIDs[item.ResourceID] {
			return fmt.Errorf("resource item %s: unknown resource %s", item.ID, item.ResourceID)
		}
	}
	return nil
}
