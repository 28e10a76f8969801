// Package export renders stored invoices as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

// SheetName is the worksheet holding the invoice rows.
const SheetName = "Invoices"

// InvoiceLister is the read side of the invoice store.
type InvoiceLister interface {
	List(ctx context.Context) ([]*entity.Invoice, error)
}

// Service produces XLSX workbooks of accepted invoices.
type Service struct {
	invoices InvoiceLister
	logger   *slog.Logger
}

func NewService(invoices InvoiceLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger}
}

// Headers is the column order: file_id, the fixed invoice fields, then the
// time the invoice was stored.
func Headers() []string {
	h := make([]string, 0, len(constants.InvoiceFields)+2)
	h = append(h, constants.FieldFileID)
	h = append(h, constants.InvoiceFields...)
	return append(h, "Stored At")
}

// ExportInvoices writes every stored invoice to w as an XLSX workbook and
// returns the number of data rows.
func (s *Service) ExportInvoices(ctx context.Context, w io.Writer) (int, error) {
	start := time.Now()

	invs, err := s.invoices.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	defer func(f *excelize.File) {
		_ = f.Close()
	}(f)

	// rename the default sheet rather than leaving an empty Sheet1 behind
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return 0, err
	}

	headers := Headers()
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	row := 2
	for _, inv := range invs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, inv.FileID)
		for i, field := range constants.InvoiceFields {
			write(i+2, truncate(inv.Get(field), 512))
		}
		write(len(headers), inv.CreatedAt.UTC().Format(time.RFC3339))
		row++
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(SheetName, "A", "A", 24)
	_ = f.SetColWidth(SheetName, "B", last, 20)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(invs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return len(invs), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
