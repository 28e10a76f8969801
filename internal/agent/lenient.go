package agent

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// ParseCall turns free-form tool input from a reasoning agent into a typed
// Call. This is the only place that tolerates malformed input.
func ParseCall(tool, raw string) (Call, error) {
	raw = strings.TrimSpace(raw)
	switch tool {
	case ToolUpdateFlag:
		return parseUpdateFlag(raw)
	case ToolPushInvoice:
		return parsePushInvoice(raw)
	case ToolSendRejection:
		return parseSendRejection(raw)
	case ToolFetchPeers:
		return parseFetchPeers(raw)
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", common.ErrInvalidInput, tool)
	}
}

// parseUpdateFlag accepts {"file_id","is_valid"} or a bare id, which
// defaults is_valid to false. A quoted is_valid is coerced; anything that
// does not read as a boolean counts as false.
func parseUpdateFlag(raw string) (Call, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return UpdateFlag{FileID: stripQuotes(raw)}, nil
	}
	switch t := v.(type) {
	case string:
		return UpdateFlag{FileID: stripQuotes(t)}, nil
	case map[string]any:
	default:
		return nil, fmt.Errorf("%w: update_flag expects a file id or a JSON object", common.ErrInvalidInput)
	}
	if err := validateJSON(updateFlagCompiled, []byte(raw)); err != nil {
		return nil, err
	}
	m := v.(map[string]any)
	c := UpdateFlag{FileID: stripQuotes(m["file_id"].(string))}
	switch flag := m["is_valid"].(type) {
	case bool:
		c.IsValid = flag
	case string:
		c.IsValid, _ = strconv.ParseBool(stripQuotes(flag))
	}
	return c, nil
}

func parsePushInvoice(raw string) (Call, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: push_invoice expects a JSON object", common.ErrInvalidInput)
	}
	return PushInvoice{Record: invoice.Record(m)}, nil
}

// parseSendRejection reads the recipient from recipient_email, then
// Received_From.
func parseSendRejection(raw string) (Call, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: send_rejection expects a JSON object", common.ErrInvalidInput)
	}
	if err := validateJSON(sendRejectionCompiled, []byte(raw)); err != nil {
		return nil, err
	}
	c := SendRejection{Reason: DefaultRejectionReason}
	for _, k := range []string{"recipient_email", constants.FieldReceivedFrom} {
		if s, _ := m[k].(string); strings.TrimSpace(s) != "" {
			c.Recipient = recipientAddress(stripQuotes(s))
			break
		}
	}
	if s, ok := m["reason"].(string); ok {
		c.Reason = s
	}
	return c, nil
}

// parseFetchPeers accepts a bare id or {"file_id": ...}.
func parseFetchPeers(raw string) (Call, error) {
	if strings.HasPrefix(raw, "{") {
		if err := validateJSON(fetchPeersCompiled, []byte(raw)); err != nil {
			return nil, err
		}
		var m struct {
			FileID string `json:"file_id"`
		}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		return FetchPeers{FileID: stripQuotes(m.FileID)}, nil
	}
	return FetchPeers{FileID: stripQuotes(raw)}, nil
}

func stripQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}

// recipientAddress reduces "Name <addr>" to addr. Unparseable input is
// returned as is so Validate can report it.
func recipientAddress(s string) string {
	a, err := mail.ParseAddress(s)
	if err != nil {
		return s
	}
	return a.Address
}
