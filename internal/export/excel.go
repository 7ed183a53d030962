package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reserva/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type BookingSource interface {
	GetBookingsByRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

type InvoiceSource interface {
	GetInvoicesByRange(ctx context.Context, start, end time.Time) ([]*models.Invoice, error)
}

// Exporter produces xlsx reports for admin tooling: an occupancy grid
// (resource item x day) and an invoice register.
type Exporter struct {
	bookings BookingSource
	invoices InvoiceSource
	path     string
	logger   *zerolog.Logger
}

func NewExporter(bookings BookingSource, invoices InvoiceSource, path string, logger *zerolog.Logger) *Exporter {
	if path == "" {
		path = "exports"
	}
	return &Exporter{
		bookings: bookings,
		invoices: invoices,
		path:     path,
		logger:   logger,
	}
}

// ExportOccupancy создает Excel файл с занятостью по дням
func (e *Exporter) ExportOccupancy(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.bookings.GetBookingsByRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Occupancy"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	dateCols := e.writeDateHeaders(f, sheetName, startDate, endDate)
	itemRows := e.writeItemRows(f, sheetName, bookings)
	e.writeOccupancyCells(f, sheetName, bookings, itemRows, dateCols)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 20)
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("occupancy_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("occupancy export created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) map[string]int {
	col := 2
	currentDate := startDate
	dateCols := make(map[string]int)

	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !currentDate.After(endDate) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, currentDate.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		dateCols[currentDate.Format("2006-01-02")] = col

		col++
		currentDate = currentDate.AddDate(0, 0, 1)
	}
	return dateCols
}

func (e *Exporter) writeItemRows(f *excelize.File, sheetName string, bookings []*models.Booking) map[string]int {
	seen := make(map[string]bool)
	var itemIDs []string
	for _, b := range bookings {
		if !seen[b.ResourceItemID] {
			seen[b.ResourceItemID] = true
			itemIDs = append(itemIDs, b.ResourceItemID)
		}
	}
	sort.Strings(itemIDs)

	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	itemRows := make(map[string]int)
	row := 3
	for _, itemID := range itemIDs {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, itemID)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		itemRows[itemID] = row
		row++
	}
	return itemRows
}

func (e *Exporter) writeOccupancyCells(f *excelize.File, sheetName string, bookings []*models.Booking, itemRows, dateCols map[string]int) {
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
	})

	type cellKey struct{ item, date string }
	grid := make(map[cellKey]string)

	for _, b := range bookings {
		// Многодневная бронь попадает в каждый день своего окна
		for day := b.Period.Start.Truncate(24 * time.Hour); day.Before(b.Period.End); day = day.AddDate(0, 0, 1) {
			key := cellKey{item: b.ResourceItemID, date: day.Format("2006-01-02")}
			grid[key] += fmt.Sprintf("%s %s-%s %s\n",
				statusIcon(b.Status),
				b.Period.Start.Format("15:04"), b.Period.End.Format("15:04"),
				b.UserID)
		}
	}

	for key, value := range grid {
		row, okRow := itemRows[key.item]
		col, okCol := dateCols[key.date]
		if !okRow || !okCol {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheetName, cell, value)
		_ = f.SetCellStyle(sheetName, cell, cell, cellStyle)
	}
}

// ExportInvoiceRegister создает Excel файл со списком счетов за период
func (e *Exporter) ExportInvoiceRegister(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	invoices, err := e.invoices.GetInvoicesByRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting invoices: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Invoices"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Number", "User", "Status", "Subtotal", "Tax", "Discount", "Total",
		"Currency", "Due date", "Booking", "Created",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, invoice := range invoices {
		row := i + 2
		dueDate := ""
		if !invoice.DueDate.IsZero() {
			dueDate = invoice.DueDate.Format("02.01.2006")
		}
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), invoice.Number)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), invoice.UserID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), invoice.Status)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), invoice.Subtotal)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), invoice.TaxAmount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), invoice.DiscountAmount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), invoice.TotalAmount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), invoice.Currency)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), dueDate)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), invoice.BookingID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), invoice.CreatedAt.Format("02.01.2006 15:04"))
	}

	_ = f.SetColWidth(sheetName, "A", "A", 22)
	_ = f.SetColWidth(sheetName, "B", "B", 20)
	_ = f.SetColWidth(sheetName, "I", "K", 18)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("invoices_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("invoice register export created")
	return filePath, nil
}

func statusIcon(status string) string {
	switch status {
	case models.BookingStatusConfirmed, models.BookingStatusCompleted:
		return "✅"
	case models.BookingStatusPending, models.BookingStatusPaymentPending:
		return "⏳"
	case models.BookingStatusCancelled, models.BookingStatusExpired:
		return "❌"
	default:
		return "❓"
	}
}
