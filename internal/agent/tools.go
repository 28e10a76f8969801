package agent

// ToolSpec describes one tool to an external orchestrator.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Tools lists the dispatcher's toolset.
func Tools() []ToolSpec {
	return []ToolSpec{
		{
			Name: ToolUpdateFlag,
			Description: "Update the flagged status of a document. " +
				"Pass a JSON string with file_id and is_valid fields. " +
				"Use is_valid=true for valid invoices, is_valid=false for invalid invoices.",
			InputSchema: updateFlagSchema(),
		},
		{
			Name:        ToolFetchPeers,
			Description: "Fetch all invoice records except the current one. Pass the current file_id as parameter.",
			InputSchema: fetchPeersSchema(),
		},
		{
			Name:        ToolPushInvoice,
			Description: "Push valid invoices to the invoice store. Pass the invoice data as JSON string.",
			InputSchema: invoiceRecordSchema(),
		},
		{
			Name: ToolSendRejection,
			Description: "Send emails for invalid invoices. " +
				"Pass a JSON string with recipient_email and reason fields.",
			InputSchema: sendRejectionSchema(),
		},
	}
}
