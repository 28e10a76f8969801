package constants

// InvoiceRecord field names, in the fixed order used for prompts, storage and export.
const (
	FieldCompanyName     = "Company Name"
	FieldInvoiceNumber   = "Invoice Number"
	FieldInvoiceDate     = "Invoice Date"
	FieldGSTIN           = "GSTIN"
	FieldPAN             = "PAN"
	FieldHSNSAC          = "HSN/SAC"
	FieldTaxes           = "Taxes"
	FieldTotalAmount     = "Total Amount"
	FieldPaymentTerms    = "Payment Terms"
	FieldCurrency        = "Currency"
	FieldCustomerName    = "Customer Name"
	FieldBillingAddress  = "Billing Address"
	FieldShippingAddress = "Shipping Address"
	FieldDocumentType    = "Document Type"
	FieldCompanyAddress  = "Company Address"
	FieldReceivedFrom    = "Received_From"

	// FieldFileID is provenance attached after extraction, not part of the fixed set.
	FieldFileID = "file_id"
)

// InvoiceFields is the fixed field set of an InvoiceRecord.
var InvoiceFields = []string{
	FieldCompanyName,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldGSTIN,
	FieldPAN,
	FieldHSNSAC,
	FieldTaxes,
	FieldTotalAmount,
	FieldPaymentTerms,
	FieldCurrency,
	FieldCustomerName,
	FieldBillingAddress,
	FieldShippingAddress,
	FieldDocumentType,
	FieldCompanyAddress,
	FieldReceivedFrom,
}

// RequiredFields is the subset whose absence rejects an invoice.
var RequiredFields = []string{
	FieldCompanyName,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldTotalAmount,
	FieldGSTIN,
	FieldCustomerName,
}

// GSTINLength is the exact length of a well-formed GSTIN.
const GSTINLength = 15
