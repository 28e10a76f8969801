package entity

import (
	"encoding/json"
	"time"
)

// ExtractedInformation is the audit row stored for every successfully
// extracted document, valid or not.
type ExtractedInformation struct {
	ID        int64           `json:"id"`
	FileID    string          `json:"file_id"`
	Record    json.RawMessage `json:"record"`
	Flagged   bool            `json:"flagged"`
	Visited   bool            `json:"visited"`
	CreatedAt time.Time       `json:"created_at"`
}

// Fields decodes the stored record.
func (e *ExtractedInformation) Fields() (map[string]any, error) {
	out := map[string]any{}
	if len(e.Record) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.Record, &out); err != nil {
		return nil, err
	}
	return out, nil
}
