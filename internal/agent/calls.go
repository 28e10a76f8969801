// Package agent holds the fixed toolset an orchestrator drives after
// validation: flag the audit row, push the invoice, notify the sender and
// count peers.
package agent

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// Tool names as exposed to orchestrators.
const (
	ToolUpdateFlag    = "update_flag"
	ToolPushInvoice   = "push_invoice"
	ToolSendRejection = "send_rejection"
	ToolFetchPeers    = "fetch_peers"
)

// DefaultRejectionReason is used when a rejection arrives without a reason.
const DefaultRejectionReason = "Invoice validation failed"

// Call is one tool invocation. The concrete types below are the only variants.
type Call interface {
	Tool() string
	Validate() error
}

// UpdateFlag marks the audit rows of FileID visited, flagged when not valid.
type UpdateFlag struct {
	FileID  string `json:"file_id"`
	IsValid bool   `json:"is_valid"`
}

// PushInvoice stores an accepted record in the invoice store.
type PushInvoice struct {
	Record invoice.Record `json:"record"`
}

// SendRejection mails Reason to Recipient.
type SendRejection struct {
	Recipient string `json:"recipient_email"`
	Reason    string `json:"reason"`
}

// FetchPeers counts audit rows other than FileID.
type FetchPeers struct {
	FileID string `json:"file_id"`
}

func (UpdateFlag) Tool() string    { return ToolUpdateFlag }
func (PushInvoice) Tool() string   { return ToolPushInvoice }
func (SendRejection) Tool() string { return ToolSendRejection }
func (FetchPeers) Tool() string    { return ToolFetchPeers }

func (c UpdateFlag) Validate() error {
	return common.NewValidator().
		Field("file_id", c.FileID, common.Required, common.MaxLength(255)).
		Error()
}

func (c PushInvoice) Validate() error {
	v := common.NewValidator().Field("record", map[string]any(c.Record), common.Required)
	if v.HasErrors() {
		return v.Error()
	}
	if c.Record.IsFailure() {
		return fmt.Errorf("%w: extraction failure records are never stored", common.ErrInvalidInput)
	}
	return validateRecordShape(c.Record)
}

// Validate leaves an empty recipient to the dispatcher, which reports it as
// ErrNoRecipient.
func (c SendRejection) Validate() error {
	return common.NewValidator().
		Field("recipient_email", c.Recipient, common.Email).
		Error()
}

func (c FetchPeers) Validate() error {
	return common.NewValidator().
		Field("file_id", c.FileID, common.Required, common.MaxLength(255)).
		Error()
}
