package config

import (
	"os"
	"path/filepath"
	"testing"

	"reserva/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "reserva"
  environment: "test"
database:
  path: "test.db"
redis:
  address: "localhost:6379"
booking:
  payment_deadline_minutes: 15
pricing:
  commission_rate: 0.1
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "reserva" {
		t.Errorf("expected app name reserva, got %s", cfg.App.Name)
	}
	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Booking.PaymentDeadlineMinutes != 15 {
		t.Errorf("expected payment deadline 15, got %d", cfg.Booking.PaymentDeadlineMinutes)
	}
	if cfg.Pricing.CommissionRate != 0.1 {
		t.Errorf("expected commission rate 0.1, got %v", cfg.Pricing.CommissionRate)
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "${RESERVA_DB_PATH}"
redis:
  address: "localhost:6379"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("RESERVA_DB_PATH", "/var/lib/reserva.db")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "/var/lib/reserva.db" {
		t.Errorf("expected expanded path, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{PaymentDeadlineMinutes: 10},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Booking: BookingConfig{PaymentDeadlineMinutes: 10},
			},
			wantErr: true,
		},
		{
			name: "zero payment deadline",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "commission rate out of range",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{PaymentDeadlineMinutes: 10},
				Pricing:  PricingConfig{CommissionRate: 1.5},
			},
			wantErr: true,
		},
		{
			name: "negative tax rate",
			cfg: Config{
				Database:  DatabaseConfig{Path: "path"},
				Booking:   BookingConfig{PaymentDeadlineMinutes: 10},
				Invoicing: InvoicingConfig{TaxRate: -0.1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Booking.PaymentDeadlineMinutes != models.DefaultPaymentDeadlineMinutes {
		t.Errorf("expected default payment deadline %d, got %d", models.DefaultPaymentDeadlineMinutes, cfg.Booking.PaymentDeadlineMinutes)
	}
	if cfg.Booking.LockTTLSeconds != models.DefaultLockTTLSeconds {
		t.Errorf("expected default lock ttl %d, got %d", models.DefaultLockTTLSeconds, cfg.Booking.LockTTLSeconds)
	}
	if cfg.Booking.LockMaxRetries != models.DefaultLockMaxRetries {
		t.Errorf("expected default lock retries %d, got %d", models.DefaultLockMaxRetries, cfg.Booking.LockMaxRetries)
	}
	if cfg.Invoicing.DueDays != models.DefaultInvoiceDueDays {
		t.Errorf("expected default due days %d, got %d", models.DefaultInvoiceDueDays, cfg.Invoicing.DueDays)
	}
	if cfg.Expiry.IntervalSeconds != models.DefaultExpiryIntervalSeconds {
		t.Errorf("expected default expiry interval %d, got %d", models.DefaultExpiryIntervalSeconds, cfg.Expiry.IntervalSeconds)
	}
	if cfg.Notifications.QueueSize != models.NotifyQueueSize {
		t.Errorf("expected default queue size %d, got %d", models.NotifyQueueSize, cfg.Notifications.QueueSize)
	}
}

func TestDurationHelpers(t *testing.T) {
	booking := BookingConfig{PaymentDeadlineMinutes: 10, LockTTLSeconds: 30}
	if booking.PaymentDeadline().Minutes() != 10 {
		t.Errorf("expected 10 minute deadline, got %v", booking.PaymentDeadline())
	}
	if booking.LockTTL().Seconds() != 30 {
		t.Errorf("expected 30 second ttl, got %v", booking.LockTTL())
	}

	expiry := ExpiryConfig{IntervalSeconds: 60}
	if expiry.Interval().Seconds() != 60 {
		t.Errorf("expected 60 second interval, got %v", expiry.Interval())
	}
}
