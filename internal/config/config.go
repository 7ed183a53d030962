package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"reserva/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Booking       BookingConfig       `yaml:"booking"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Invoicing     InvoicingConfig     `yaml:"invoicing"`
	Expiry        ExpiryConfig        `yaml:"expiry"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Exports       ExportConfig        `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BookingConfig struct {
	PaymentDeadlineMinutes int `yaml:"payment_deadline_minutes"`
	LockTTLSeconds         int `yaml:"lock_ttl_seconds"`
	LockMaxRetries         int `yaml:"lock_max_retries"`
	MaxAdvanceDays         int `yaml:"max_advance_days"`
}

type PricingConfig struct {
	CommissionRate float64 `yaml:"commission_rate"`
}

type InvoicingConfig struct {
	TaxRate float64 `yaml:"tax_rate"`
	DueDays int     `yaml:"due_days"`
}

type ExpiryConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type NotificationsConfig struct {
	QueueSize     int     `yaml:"queue_size"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
	MaxRetries    int     `yaml:"max_retries"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.PaymentDeadlineMinutes < 1 {
		return errors.New("booking payment deadline must be at least one minute")
	}
	if c.Pricing.CommissionRate < 0 || c.Pricing.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1), got %v", c.Pricing.CommissionRate)
	}
	if c.Invoicing.TaxRate < 0 || c.Invoicing.TaxRate >= 1 {
		return fmt.Errorf("tax rate must be in [0, 1), got %v", c.Invoicing.TaxRate)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Booking.PaymentDeadlineMinutes == 0 {
		c.Booking.PaymentDeadlineMinutes = models.DefaultPaymentDeadlineMinutes
	}
	if c.Booking.LockTTLSeconds == 0 {
		c.Booking.LockTTLSeconds = models.DefaultLockTTLSeconds
	}
	if c.Booking.LockMaxRetries == 0 {
		c.Booking.LockMaxRetries = models.DefaultLockMaxRetries
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 365
	}
	if c.Invoicing.DueDays == 0 {
		c.Invoicing.DueDays = models.DefaultInvoiceDueDays
	}
	if c.Expiry.IntervalSeconds == 0 {
		c.Expiry.IntervalSeconds = models.DefaultExpiryIntervalSeconds
	}
	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = models.NotifyQueueSize
	}
	if c.Notifications.RatePerSecond == 0 {
		c.Notifications.RatePerSecond = 20
	}
	if c.Notifications.RateBurst == 0 {
		c.Notifications.RateBurst = 10
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// PaymentDeadline возвращает срок оплаты брони как Duration
func (c *BookingConfig) PaymentDeadline() time.Duration {
	return time.Duration(c.PaymentDeadlineMinutes) * time.Minute
}

func (c *BookingConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *ExpiryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
