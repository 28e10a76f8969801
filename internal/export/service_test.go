package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
)

type stubLister struct {
	invs []*entity.Invoice
	err  error
}

func (s stubLister) List(context.Context) ([]*entity.Invoice, error) { return s.invs, s.err }

func strp(s string) *string { return &s }

func TestExportInvoices(t *testing.T) {
	inv := &entity.Invoice{
		FileID:        "f-1",
		CompanyName:   strp("Acme"),
		InvoiceNumber: strp("INV-1"),
		TotalAmount:   strp("100"),
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	svc := NewService(stubLister{invs: []*entity.Invoice{inv}}, nil)

	var buf bytes.Buffer
	n, err := svc.ExportInvoices(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ExportInvoices: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows = %d", n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if got := strings.Join(rows[0], "|"); got != strings.Join(Headers(), "|") {
		t.Errorf("header = %s", got)
	}
	data := rows[1]
	if data[0] != "f-1" {
		t.Errorf("file_id cell = %q", data[0])
	}
	col := func(field string) string {
		for i, f := range constants.InvoiceFields {
			if f == field {
				if i+1 < len(data) {
					return data[i+1]
				}
			}
		}
		return ""
	}
	if col(constants.FieldCompanyName) != "Acme" || col(constants.FieldTotalAmount) != "100" {
		t.Errorf("data row = %v", data)
	}
	if col(constants.FieldGSTIN) != "" {
		t.Errorf("null GSTIN should be blank, got %q", col(constants.FieldGSTIN))
	}
	if data[len(data)-1] != "2024-01-02T03:04:05Z" {
		t.Errorf("stored at = %q", data[len(data)-1])
	}
}

func TestExportInvoices_ListError(t *testing.T) {
	svc := NewService(stubLister{err: errors.New("db down")}, nil)
	if _, err := svc.ExportInvoices(context.Background(), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Errorf("truncate short = %q", got)
	}
}
