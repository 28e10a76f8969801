package agent

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

// updateFlagSchema is the JSON form of update_flag input.
func updateFlagSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_id":  map[string]any{"type": "string", "minLength": 1},
			"is_valid": map[string]any{"type": []string{"boolean", "string"}},
		},
		"required": []string{"file_id"},
	}
}

// sendRejectionSchema accepts the recipient under either key.
func sendRejectionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient_email":           map[string]any{"type": "string"},
			constants.FieldReceivedFrom: map[string]any{"type": "string"},
			"reason":                    map[string]any{"type": "string"},
		},
	}
}

func fetchPeersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"file_id"},
	}
}

// invoiceRecordSchema allows the fixed field set plus file_id, nothing else.
func invoiceRecordSchema() map[string]any {
	props := make(map[string]any, len(constants.InvoiceFields)+1)
	for _, f := range constants.InvoiceFields {
		props[f] = map[string]any{"type": []string{"string", "number", "boolean", "object", "array", "null"}}
	}
	props[constants.FieldFileID] = map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"minProperties":        1,
	}
}

var (
	updateFlagCompiled    = mustCompile("update_flag.json", updateFlagSchema())
	sendRejectionCompiled = mustCompile("send_rejection.json", sendRejectionSchema())
	fetchPeersCompiled    = mustCompile("fetch_peers.json", fetchPeersSchema())
	recordCompiled        = mustCompile("invoice_record.json", invoiceRecordSchema())
)

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(name)
}

// validateJSON checks raw JSON against a compiled schema.
func validateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: json does not match schema: %v", common.ErrInvalidInput, err)
	}
	return nil
}

func validateRecordShape(record map[string]any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: record is not serializable: %v", common.ErrInvalidInput, err)
	}
	return validateJSON(recordCompiled, b)
}
