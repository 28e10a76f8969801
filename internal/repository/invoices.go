package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// InvoiceRepository is the store of accepted invoices.
type InvoiceRepository interface {
	Insert(ctx context.Context, record invoice.Record) (*entity.Invoice, error)
	List(ctx context.Context) ([]*entity.Invoice, error)
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{db: db, logger: logger}
}

// ToInvoice flattens a record into its stored form.
func ToInvoice(record invoice.Record) *entity.Invoice {
	inv := &entity.Invoice{FileID: record.FileID()}
	for _, c := range invoiceColumns {
		*inv.Slot(c.Field) = record.Text(c.Field)
	}
	return inv
}

func (r *invoiceRepository) Insert(ctx context.Context, record invoice.Record) (*entity.Invoice, error) {
	if record.IsFailure() {
		return nil, common.NewAppError("INVALID_RECORD", "failure records are never stored", common.ErrInvalidInput)
	}
	inv := ToInvoice(record)
	inv.CreatedAt = time.Now().UTC()

	cols := make([]string, 0, len(invoiceColumns)+2)
	vals := make([]any, 0, len(invoiceColumns)+2)
	cols = append(cols, "file_id")
	vals = append(vals, inv.FileID)
	for _, c := range invoiceColumns {
		cols = append(cols, c.Column)
		if p := *inv.Slot(c.Field); p != nil {
			vals = append(vals, *p)
		} else {
			vals = append(vals, nil)
		}
	}
	cols = append(cols, "created_at")
	vals = append(vals, inv.CreatedAt)

	q, args := r.db.builder().Insert(tableInvoices).
		Columns(cols...).
		Values(vals...).
		Returning("id").
		Query()
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&inv.ID)
	})
	if err != nil {
		r.logger.Error("repo.invoice.insert_failed", "file_id", inv.FileID, "error", err)
		return nil, dbError("insert invoice_db", err)
	}
	r.logger.Info("repo.invoice.inserted", "id", inv.ID, "file_id", inv.FileID)
	return inv, nil
}

// List returns every stored invoice, oldest first.
func (r *invoiceRepository) List(ctx context.Context) ([]*entity.Invoice, error) {
	cols := []string{"id", "file_id"}
	for _, c := range invoiceColumns {
		cols = append(cols, c.Column)
	}
	cols = append(cols, "created_at")

	b := r.db.builder()
	q, args := b.Select(cols...).
		From(b.Table(tableInvoices)).
		OrderBy(entsql.Asc("id")).
		Query()

	var out []*entity.Invoice
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		inv := &entity.Invoice{}
		texts := make([]entsql.NullString, len(invoiceColumns))
		dest := []any{&inv.ID, &inv.FileID}
		for i := range texts {
			dest = append(dest, &texts[i])
		}
		dest = append(dest, &inv.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, c := range invoiceColumns {
			if texts[i].Valid {
				s := texts[i].String
				*inv.Slot(c.Field) = &s
			}
		}
		out = append(out, inv)
		return nil
	})
	if err != nil {
		r.logger.Error("repo.invoice.list_failed", "error", err)
		return nil, dbError("list invoice_db", err)
	}
	return out, nil
}
