package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Invoice is an accepted invoice as stored in invoice_db. Every field is
// kept as text; nil means the extractor reported null.
type Invoice struct {
	ID              int64     `json:"id"`
	FileID          string    `json:"file_id"`
	CompanyName     *string   `json:"company_name,omitempty"`
	InvoiceNumber   *string   `json:"invoice_number,omitempty"`
	InvoiceDate     *string   `json:"invoice_date,omitempty"`
	GSTIN           *string   `json:"gstin,omitempty"`
	PAN             *string   `json:"pan,omitempty"`
	HSNSAC          *string   `json:"hsn_sac,omitempty"`
	Taxes           *string   `json:"taxes,omitempty"`
	TotalAmount     *string   `json:"total_amount,omitempty"`
	PaymentTerms    *string   `json:"payment_terms,omitempty"`
	Currency        *string   `json:"currency,omitempty"`
	CustomerName    *string   `json:"customer_name,omitempty"`
	BillingAddress  *string   `json:"billing_address,omitempty"`
	ShippingAddress *string   `json:"shipping_address,omitempty"`
	DocumentType    *string   `json:"document_type,omitempty"`
	CompanyAddress  *string   `json:"company_address,omitempty"`
	ReceivedFrom    *string   `json:"received_from,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Slot returns the storage slot for a record field name, or nil for an
// unknown field.
func (i *Invoice) Slot(field string) **string {
	switch field {
	case constants.FieldCompanyName:
		return &i.CompanyName
	case constants.FieldInvoiceNumber:
		return &i.InvoiceNumber
	case constants.FieldInvoiceDate:
		return &i.InvoiceDate
	case constants.FieldGSTIN:
		return &i.GSTIN
	case constants.FieldPAN:
		return &i.PAN
	case constants.FieldHSNSAC:
		return &i.HSNSAC
	case constants.FieldTaxes:
		return &i.Taxes
	case constants.FieldTotalAmount:
		return &i.TotalAmount
	case constants.FieldPaymentTerms:
		return &i.PaymentTerms
	case constants.FieldCurrency:
		return &i.Currency
	case constants.FieldCustomerName:
		return &i.CustomerName
	case constants.FieldBillingAddress:
		return &i.BillingAddress
	case constants.FieldShippingAddress:
		return &i.ShippingAddress
	case constants.FieldDocumentType:
		return &i.DocumentType
	case constants.FieldCompanyAddress:
		return &i.CompanyAddress
	case constants.FieldReceivedFrom:
		return &i.ReceivedFrom
	}
	return nil
}

// Get returns a field's text, "" when null or unknown.
func (i *Invoice) Get(field string) string {
	if s := i.Slot(field); s != nil && *s != nil {
		return **s
	}
	return ""
}
