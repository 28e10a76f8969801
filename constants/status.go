package constants

// Outcome is the terminal state of one processed document.
type Outcome string

// Stable values (logged and exported as metric labels).
const (
	OutcomeIdle     Outcome = "IDLE"     // nothing to process this cycle
	OutcomeAccepted Outcome = "ACCEPTED" // valid, flag cleared and invoice pushed
	OutcomeRejected Outcome = "REJECTED" // invalid, flag set and sender notified
	OutcomeFailed   Outcome = "FAILED"   // extraction or collaborator failure, document skipped
)
