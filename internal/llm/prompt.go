package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// BuildExtractionPrompt renders the fixed extraction template for one document.
// The rules are instructions to the model only; key enforcement happens in
// invoice.Normalize.
func BuildExtractionPrompt(ocrText, senderEmail string) string {
	var b strings.Builder
	b.WriteString("You are an expert at extracting structured data from documents. ")
	b.WriteString("Given the OCR text from a document, extract and return a JSON with the following fields:\n\n")
	b.WriteString(strings.Join(constants.InvoiceFields, ", "))
	b.WriteString(".\n\n")
	b.WriteString("Received_From = ")
	b.WriteString(senderEmail)
	b.WriteString("\n\n")
	for _, rule := range extractionRules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	b.WriteString("\nOCR Text:\n")
	b.WriteString(ocrText)
	b.WriteString("\n\nReturn only JSON:\n")
	b.WriteString("Return only a valid JSON object (no explanations, no markdown).\n")
	return b.String()
}

var extractionRules = []string{
	"Only use information explicitly present in the text.",
	"If a field is not found in the text, set its value to null.",
	"Do not assume or infer any values.",
	"The output must be strictly a valid JSON object and nothing else.",
	"Extract date in the given format yyyy-mm-dd",
}
