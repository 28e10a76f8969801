package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ParseFailureReason is the "error" value of a record produced when model
// output cannot be decoded.
const ParseFailureReason = "Failed to parse JSON"

var (
	reJSONFence = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	reAnyFence  = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	reBraceSpan = regexp.MustCompile(`(?s)(\{.*\})`)
)

// extractionLadder is tried in order; the first match wins.
var extractionLadder = []*regexp.Regexp{reJSONFence, reAnyFence, reBraceSpan}

// ExtractJSON recovers the JSON candidate from free-form model text:
// a ```json fence, then any fence, then the greedy first {...} span.
// Text with none of these is returned unchanged.
func ExtractJSON(text string) string {
	for _, re := range extractionLadder {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return text
}

// RepairBraces prepends "{" and appends "}" when missing. The result is not
// guaranteed to be valid JSON.
func RepairBraces(candidate string) string {
	if !strings.HasPrefix(candidate, "{") {
		candidate = "{" + candidate
	}
	if !strings.HasSuffix(candidate, "}") {
		candidate = candidate + "}"
	}
	return candidate
}

// ParseResponse turns raw model output into a Result: extract, repair, decode.
// It never returns an error; decoding problems become a Failure.
func ParseResponse(text string) Result {
	candidate := RepairBraces(strings.TrimSpace(ExtractJSON(strings.TrimSpace(text))))
	m, err := decodeObject(candidate)
	if err != nil {
		return Failed(Failure{
			Reason:    ParseFailureReason,
			Exception: err.Error(),
			Raw:       candidate,
		})
	}
	return Parsed(Record(m))
}

// decodeObject decodes exactly one JSON object, keeping numbers as json.Number.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("json: top-level value is null")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("json: extra data after top-level object (offset %d)", dec.InputOffset())
	}
	return m, nil
}
