package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

const (
	tableExtracted = "extracted_information"
	tableInvoices  = "invoice_db"
)

// invoiceColumns maps record field names to invoice_db columns, in field order.
var invoiceColumns = []struct {
	Field  string
	Column string
}{
	{constants.FieldCompanyName, "company_name"},
	{constants.FieldInvoiceNumber, "invoice_number"},
	{constants.FieldInvoiceDate, "invoice_date"},
	{constants.FieldGSTIN, "gstin"},
	{constants.FieldPAN, "pan"},
	{constants.FieldHSNSAC, "hsn_sac"},
	{constants.FieldTaxes, "taxes"},
	{constants.FieldTotalAmount, "total_amount"},
	{constants.FieldPaymentTerms, "payment_terms"},
	{constants.FieldCurrency, "currency"},
	{constants.FieldCustomerName, "customer_name"},
	{constants.FieldBillingAddress, "billing_address"},
	{constants.FieldShippingAddress, "shipping_address"},
	{constants.FieldDocumentType, "document_type"},
	{constants.FieldCompanyAddress, "company_address"},
	{constants.FieldReceivedFrom, "received_from"},
}

func idColumn() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
}

func extractedTable() *schema.Table {
	t := schema.NewTable(tableExtracted).
		AddPrimary(idColumn()).
		AddColumn(&schema.Column{Name: "file_id", Type: field.TypeString, Size: 255}).
		AddColumn(&schema.Column{Name: "record", Type: field.TypeJSON}).
		AddColumn(&schema.Column{Name: "flagged", Type: field.TypeBool, Default: false}).
		AddColumn(&schema.Column{Name: "visited", Type: field.TypeBool, Default: false}).
		AddColumn(&schema.Column{Name: "created_at", Type: field.TypeTime})
	return t.AddIndex("extracted_information_file_id", false, []string{"file_id"})
}

func invoicesTable() *schema.Table {
	t := schema.NewTable(tableInvoices).
		AddPrimary(idColumn()).
		AddColumn(&schema.Column{Name: "file_id", Type: field.TypeString, Size: 255})
	for _, c := range invoiceColumns {
		t.AddColumn(&schema.Column{
			Name:       c.Column,
			Type:       field.TypeString,
			Nullable:   true,
			SchemaType: map[string]string{"postgres": "text", "sqlite3": "text"},
		})
	}
	t.AddColumn(&schema.Column{Name: "created_at", Type: field.TypeTime})
	return t.AddIndex("invoice_db_file_id", false, []string{"file_id"})
}

// Tables lists the schema managed by Migrate.
func Tables() []*schema.Table {
	return []*schema.Table{extractedTable(), invoicesTable()}
}

// Migrate creates or updates both tables.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables()...); err != nil {
		d.logger.Error("db.migrate.failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	d.logger.Info("db.migrate.ok", "tables", []string{tableExtracted, tableInvoices})
	return nil
}
