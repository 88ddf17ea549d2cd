package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"frontdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Reporter writes front-desk reports as Excel workbooks.
type Reporter struct {
	dir    string
	logger *zerolog.Logger
}

// NewReporter writes files into dir, creating it on first use.
func NewReporter(dir string, logger *zerolog.Logger) *Reporter {
	return &Reporter{dir: dir, logger: logger}
}

// WriteDailyReport produces a workbook with an occupancy sheet and an
// invoice sheet, and returns the file path.
func (r *Reporter) WriteDailyReport(rooms []models.Room, invoices []models.Invoice, revenue float64) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := r.writeOccupancySheet(f, rooms); err != nil {
		return "", err
	}
	if err := r.writeInvoiceSheet(f, invoices, revenue); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("frontdesk_%s.xlsx", time.Now().Format("2006-01-02"))
	filePath := filepath.Join(r.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	r.logger.Info().Str("file_path", filePath).Msg("report created")
	return filePath, nil
}

func (r *Reporter) writeOccupancySheet(f *excelize.File, rooms []models.Room) error {
	const sheet = "Occupancy"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Room", "Name", "Type", "Block", "Rate", "Status", "Guest"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	occupied := 0
	for row, room := range rooms {
		values := []interface{}{room.Number, room.Name, room.Type, room.Block, room.Rate, string(room.Status), room.Guest}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		if room.Status == models.RoomOccupied {
			occupied++
		}
	}

	summaryRow := len(rooms) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	_ = f.SetCellValue(sheet, cell, fmt.Sprintf("Occupied: %d / %d", occupied, len(rooms)))

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	_ = f.SetColWidth(sheet, "A", "G", 18)
	return nil
}

func (r *Reporter) writeInvoiceSheet(f *excelize.File, invoices []models.Invoice, revenue float64) error {
	const sheet = "Invoices"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headers := []string{"Invoice", "Guest", "Room", "Nights", "Room Total", "Services", "Total", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for row, inv := range invoices {
		values := []interface{}{
			inv.ID, inv.GuestName, inv.RoomID, inv.Nights,
			inv.RoomTotal, inv.ServiceTotal, inv.TotalAmount, string(inv.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	summaryRow := len(invoices) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	_ = f.SetCellValue(sheet, cell, fmt.Sprintf("Paid revenue: %.2f", revenue))

	_ = f.SetColWidth(sheet, "A", "H", 16)
	return nil
}
