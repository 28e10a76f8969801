package agent

import (
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// Plan returns the fixed action script for a validated record: an accepted
// invoice is unflagged and pushed, a rejected one is flagged and its sender
// notified with the itemized reason.
func Plan(fileID string, record invoice.Record, v invoice.ValidationResult) []Call {
	if v.Valid {
		return []Call{
			UpdateFlag{FileID: fileID, IsValid: true},
			PushInvoice{Record: record},
		}
	}
	return []Call{
		UpdateFlag{FileID: fileID, IsValid: false},
		SendRejection{Recipient: record.Sender(), Reason: v.Reason},
	}
}
