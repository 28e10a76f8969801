// Package invoice holds the canonical invoice record and the deterministic
// logic around it: normalization, recovery of JSON from model output and
// business-rule validation.
package invoice

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Failure record keys. A record carrying KeyError is an extraction failure
// and must never be normalized, validated or persisted.
const (
	KeyError     = "error"
	KeyException = "exception"
	KeyRawOutput = "raw_output"
)

// Record is an InvoiceRecord keyed by field name. A nil value is the null sentinel.
type Record map[string]any

// IsFailure reports whether r is an upstream failure record.
func (r Record) IsFailure() bool {
	_, ok := r[KeyError]
	return ok
}

// Normalize forces raw into the fixed field set. Missing fields become nil,
// unknown keys are dropped. A mapping with an "error" key is returned unchanged.
func Normalize(raw map[string]any) Record {
	if _, failed := raw[KeyError]; failed {
		return Record(raw)
	}
	out := make(Record, len(constants.InvoiceFields))
	for _, f := range constants.InvoiceFields {
		out[f] = raw[f]
	}
	return out
}

// WithProvenance returns a copy of r with Received_From overwritten by the
// trusted sender and file_id attached.
func (r Record) WithProvenance(fileID, sender string) Record {
	out := maps.Clone(r)
	out[constants.FieldReceivedFrom] = sender
	out[constants.FieldFileID] = fileID
	return out
}

// storageScalarFields must be scalars before leaving the pipeline.
var storageScalarFields = []string{constants.FieldTaxes, constants.FieldBillingAddress}

// FlattenStructured serializes nested mappings in Taxes and Billing Address
// to their JSON text in place.
func (r Record) FlattenStructured() error {
	for _, f := range storageScalarFields {
		m, ok := r[f].(map[string]any)
		if !ok {
			continue
		}
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		r[f] = string(b)
	}
	return nil
}

// FileID returns the attached provenance id, if any.
func (r Record) FileID() string {
	s, _ := r[constants.FieldFileID].(string)
	return s
}

// Sender returns Received_From as a string, or "" when it is not one.
func (r Record) Sender() string {
	s, _ := r[constants.FieldReceivedFrom].(string)
	return s
}

// Failure is the failed variant of a parse Result.
type Failure struct {
	Reason    string
	Exception string
	Raw       string

	// Passthrough is the original mapping when the failure arrived as an
	// "error"-keyed record; it is returned unchanged by Record.
	Passthrough Record
}

// Record renders the failure in its magic-key form.
func (f Failure) Record() Record {
	if f.Passthrough != nil {
		return f.Passthrough
	}
	return Record{
		KeyError:     f.Reason,
		KeyException: f.Exception,
		KeyRawOutput: f.Raw,
	}
}

// Result is either a parsed record or a failure; exactly one is set.
type Result struct {
	Record  Record
	Failure *Failure
}

// Parsed wraps a successfully decoded mapping.
func Parsed(r Record) Result { return Result{Record: r} }

// Failed wraps a failure.
func Failed(f Failure) Result { return Result{Failure: &f} }

// OK reports whether the result holds a usable record.
func (r Result) OK() bool { return r.Failure == nil }

// AsRecord returns the record, or the failure in magic-key form.
func (r Result) AsRecord() Record {
	if r.Failure != nil {
		return r.Failure.Record()
	}
	return r.Record
}

// Normalize applies Normalize to a parsed result. Failures pass through, and
// so does a parsed mapping that itself carries an "error" key.
func (r Result) Normalize() Result {
	if r.Failure != nil {
		return r
	}
	n := Normalize(r.Record)
	if n.IsFailure() {
		return Failed(failureFromRecord(n))
	}
	return Parsed(n)
}

func failureFromRecord(r Record) Failure {
	str := func(k string) string {
		switch v := r[k].(type) {
		case nil:
			return ""
		case string:
			return v
		default:
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return Failure{Reason: str(KeyError), Exception: str(KeyException), Raw: str(KeyRawOutput), Passthrough: r}
}

// Text returns the storage text of a field. Nil and absent fields yield nil;
// nested values are rendered as JSON.
func (r Record) Text(field string) *string {
	v, ok := r[field]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(t)
	}
	return &s
}
