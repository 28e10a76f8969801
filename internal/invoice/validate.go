package invoice

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Validation messages.
const (
	PassMessage = "Invoice validation passed"

	IssueTotalZero      = "Total Amount is zero or missing"
	IssueGSTINFormat    = "GSTIN format is invalid (should be 15 characters)"
	IssueInvoiceDate    = "Invoice Date is missing"
	IssueTaxInformation = "Tax information is missing"
)

// ValidationResult is the accept/reject decision for one record.
type ValidationResult struct {
	Valid   bool     `json:"is_valid"`
	Missing []string `json:"missing,omitempty"`
	Issues  []string `json:"issues,omitempty"`
	Reason  string   `json:"reason"`
}

// Validate applies every business rule to r independently and aggregates
// the findings. A field may be reported both as missing and by a value rule.
func Validate(r Record) ValidationResult {
	var missing, issues []string

	for _, f := range constants.RequiredFields {
		if isNullLike(r[f]) {
			missing = append(missing, f)
		}
	}

	total, ok := r[constants.FieldTotalAmount]
	if !ok || total == nil || isNumericZero(total) {
		issues = append(issues, IssueTotalZero)
	}

	if g := r[constants.FieldGSTIN]; truthy(g) && utf8.RuneCountInString(stringForm(g)) != constants.GSTINLength {
		issues = append(issues, IssueGSTINFormat)
	}

	if !truthy(r[constants.FieldInvoiceDate]) {
		issues = append(issues, IssueInvoiceDate)
	}

	if isNullLike(r[constants.FieldTaxes]) {
		issues = append(issues, IssueTaxInformation)
	}

	if len(missing) == 0 && len(issues) == 0 {
		return ValidationResult{Valid: true, Reason: PassMessage}
	}

	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, "Missing required fields: "+strings.Join(missing, ", "))
	}
	if len(issues) > 0 {
		parts = append(parts, "Validation issues: "+strings.Join(issues, "; "))
	}
	return ValidationResult{
		Valid:   false,
		Missing: missing,
		Issues:  issues,
		Reason:  strings.Join(parts, ". "),
	}
}

// isNullLike is the "missing" test: falsy, or the literal string "null".
func isNullLike(v any) bool {
	if s, ok := v.(string); ok && s == "null" {
		return true
	}
	return !truthy(v)
}

// truthy treats nil, "", false, numeric zero and empty collections as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return !isNumericZero(t)
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func isNumericZero(v any) bool {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case uint:
		return t == 0
	case uint32:
		return t == 0
	case uint64:
		return t == 0
	}
	return false
}

func stringForm(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
