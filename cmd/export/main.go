package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/export"
	"reserva/internal/logging"
)

// Админский инструмент: выгрузка занятости и реестра счетов в xlsx
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	report := flag.String("report", "occupancy", "report to produce: occupancy or invoices")
	from := flag.String("from", "", "period start, YYYY-MM-DD (default: today)")
	to := flag.String("to", "", "period end, YYYY-MM-DD (default: from + 14 days)")
	flag.Parse()

	startDate, endDate, err := parsePeriod(*from, *to)
	if err != nil {
		return err
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "export").Logger()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	exporter := export.NewExporter(db, db, cfg.Exports.Path, &logger)
	ctx := context.Background()

	var filePath string
	switch *report {
	case "occupancy":
		filePath, err = exporter.ExportOccupancy(ctx, startDate, endDate)
	case "invoices":
		filePath, err = exporter.ExportInvoiceRegister(ctx, startDate, endDate)
	default:
		return fmt.Errorf("unknown report %q, want occupancy or invoices", *report)
	}
	if err != nil {
		return err
	}

	fmt.Println(filePath)
	return nil
}

func parsePeriod(from, to string) (time.Time, time.Time, error) {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if from != "" {
		var err error
		start, err = time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date: %w", err)
		}
	}

	end := start.AddDate(0, 0, 14)
	if to != "" {
		var err error
		end, err = time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date: %w", err)
		}
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("period end %s must be after start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}
