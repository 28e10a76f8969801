package agent

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
	"github.com/joseph-ayodele/invoice-intake/internal/metrics"
)

type fakeFlags struct {
	updates map[string]bool
	peers   int
	err     error
}

func (f *fakeFlags) UpdateFlag(_ context.Context, fileID string, flagged bool) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.updates == nil {
		f.updates = map[string]bool{}
	}
	f.updates[fileID] = flagged
	return 1, nil
}

func (f *fakeFlags) CountExcept(context.Context, string) (int, error) {
	return f.peers, f.err
}

type fakeInvoices struct {
	stored []invoice.Record
}

func (f *fakeInvoices) Insert(_ context.Context, r invoice.Record) (*entity.Invoice, error) {
	f.stored = append(f.stored, r)
	return &entity.Invoice{ID: int64(len(f.stored)), FileID: r.FileID()}, nil
}

type sentMail struct{ to, reason string }

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendRejection(_ context.Context, to, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, reason})
	return nil
}

func newTestDispatcher() (*Dispatcher, *fakeFlags, *fakeInvoices, *fakeMailer) {
	flags, invs, mailer := &fakeFlags{}, &fakeInvoices{}, &fakeMailer{}
	return NewDispatcher(flags, invs, mailer, nil), flags, invs, mailer
}

func sampleRecord() invoice.Record {
	return invoice.Normalize(map[string]any{
		"Company Name":   "Acme",
		"Invoice Number": "INV-1",
		"Invoice Date":   "2024-01-01",
		"Total Amount":   100,
		"GSTIN":          "12ABCDE3456F7Z8",
		"Customer Name":  "Bob",
		"Taxes":          "18%",
	}).WithProvenance("f1", "vendor@example.com")
}

func TestParseCall(t *testing.T) {
	cases := []struct {
		name  string
		tool  string
		input string
		want  Call
	}{
		{"update json", ToolUpdateFlag, `{"file_id": "abc", "is_valid": true}`, UpdateFlag{FileID: "abc", IsValid: true}},
		{"update json default invalid", ToolUpdateFlag, `{"file_id": "'abc'"}`, UpdateFlag{FileID: "abc"}},
		{"update bare id", ToolUpdateFlag, `'abc'`, UpdateFlag{FileID: "abc"}},
		{"update quoted json string", ToolUpdateFlag, `"abc"`, UpdateFlag{FileID: "abc"}},
		{"update quoted true", ToolUpdateFlag, `{"file_id": "abc", "is_valid": "true"}`, UpdateFlag{FileID: "abc", IsValid: true}},
		{"update quoted false", ToolUpdateFlag, `{"file_id": "abc", "is_valid": "false"}`, UpdateFlag{FileID: "abc"}},
		{"update unreadable flag", ToolUpdateFlag, `{"file_id": "abc", "is_valid": "maybe"}`, UpdateFlag{FileID: "abc"}},
		{"rejection recipient", ToolSendRejection, `{"recipient_email": "a@b.test", "reason": "bad"}`, SendRejection{Recipient: "a@b.test", Reason: "bad"}},
		{"rejection received_from", ToolSendRejection, `{"Received_From": "c@d.test"}`, SendRejection{Recipient: "c@d.test", Reason: DefaultRejectionReason}},
		{"rejection display name", ToolSendRejection, `{"recipient_email": "Bob <bob@x.test>"}`, SendRejection{Recipient: "bob@x.test", Reason: DefaultRejectionReason}},
		{"rejection no recipient", ToolSendRejection, `{"reason": "x"}`, SendRejection{Reason: "x"}},
		{"peers bare", ToolFetchPeers, ` "abc" `, FetchPeers{FileID: "abc"}},
		{"peers json", ToolFetchPeers, `{"file_id": "abc"}`, FetchPeers{FileID: "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCall(tc.tool, tc.input)
			if err != nil {
				t.Fatalf("ParseCall: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseCall_Errors(t *testing.T) {
	cases := []struct {
		tool, input string
	}{
		{"delete_everything", `{}`},
		{ToolUpdateFlag, `{"is_valid": true}`},
		{ToolUpdateFlag, `{"file_id": 7}`},
		{ToolUpdateFlag, `[1,2]`},
		{ToolUpdateFlag, `42`},
		{ToolUpdateFlag, `null`},
		{ToolUpdateFlag, `{"file_id": "abc", "is_valid": 1}`},
		{ToolSendRejection, `not json`},
		{ToolPushInvoice, `[1,2]`},
		{ToolFetchPeers, `{"file": "x"}`},
		{ToolFetchPeers, `{"file_id": "abc"`},
	}
	for _, tc := range cases {
		if _, err := ParseCall(tc.tool, tc.input); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("ParseCall(%s, %s) err = %v, want ErrInvalidInput", tc.tool, tc.input, err)
		}
	}
}

func TestParseCall_PushInvoiceKeepsNumbers(t *testing.T) {
	c, err := ParseCall(ToolPushInvoice, `{"Company Name": "Acme", "Total Amount": 100.50}`)
	if err != nil {
		t.Fatalf("ParseCall: %v", err)
	}
	rec := c.(PushInvoice).Record
	if n, ok := rec["Total Amount"].(json.Number); !ok || n.String() != "100.50" {
		t.Errorf("Total Amount = %#v", rec["Total Amount"])
	}
}

func TestPlan(t *testing.T) {
	rec := sampleRecord()

	valid := Plan("f1", rec, invoice.ValidationResult{Valid: true, Reason: invoice.PassMessage})
	if len(valid) != 2 {
		t.Fatalf("valid plan = %v", valid)
	}
	if valid[0] != (UpdateFlag{FileID: "f1", IsValid: true}) {
		t.Errorf("first call = %#v", valid[0])
	}
	if p, ok := valid[1].(PushInvoice); !ok || p.Record.FileID() != "f1" {
		t.Errorf("second call = %#v", valid[1])
	}

	invalid := Plan("f1", rec, invoice.ValidationResult{Valid: false, Reason: "Validation issues: Tax information is missing"})
	want := []Call{
		UpdateFlag{FileID: "f1", IsValid: false},
		SendRejection{Recipient: "vendor@example.com", Reason: "Validation issues: Tax information is missing"},
	}
	if !reflect.DeepEqual(invalid, want) {
		t.Errorf("invalid plan = %#v", invalid)
	}
}

func TestDispatch_UpdateFlag(t *testing.T) {
	d, flags, _, _ := newTestDispatcher()
	before := testutil.ToFloat64(metrics.ToolCallsTotal.WithLabelValues(ToolUpdateFlag, "ok"))

	got, err := d.Dispatch(context.Background(), UpdateFlag{FileID: "f1", IsValid: false})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "Successfully updated: flagged=true, visited=true for file_id=f1" {
		t.Errorf("result = %q", got)
	}
	if flagged, ok := flags.updates["f1"]; !ok || !flagged {
		t.Errorf("updates = %v", flags.updates)
	}
	if after := testutil.ToFloat64(metrics.ToolCallsTotal.WithLabelValues(ToolUpdateFlag, "ok")); after != before+1 {
		t.Errorf("tool counter = %v, want %v", after, before+1)
	}
}

func TestDispatch_PushInvoiceFlattens(t *testing.T) {
	d, _, invs, _ := newTestDispatcher()
	rec := sampleRecord()
	rec["Taxes"] = map[string]any{"IGST": "18%"}

	got, err := d.Dispatch(context.Background(), PushInvoice{Record: rec})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "Successfully inserted invoice into invoice_db" {
		t.Errorf("result = %q", got)
	}
	if len(invs.stored) != 1 || invs.stored[0]["Taxes"] != `{"IGST":"18%"}` {
		t.Errorf("stored = %v", invs.stored)
	}
	if _, ok := rec["Taxes"].(map[string]any); !ok {
		t.Errorf("caller's record was mutated")
	}
}

func TestDispatch_PushInvoiceRejectsBadShapes(t *testing.T) {
	d, _, invs, _ := newTestDispatcher()
	bad := []invoice.Record{
		{"error": "Failed to parse JSON", "raw_output": "{}"},
		{"Company Name": "Acme", "Unexpected": 1},
		{},
	}
	for _, r := range bad {
		if _, err := d.Dispatch(context.Background(), PushInvoice{Record: r}); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("record %v: err = %v, want ErrInvalidInput", r, err)
		}
	}
	if len(invs.stored) != 0 {
		t.Errorf("nothing should be stored, got %v", invs.stored)
	}
}

func TestDispatch_SendRejection(t *testing.T) {
	d, _, _, mailer := newTestDispatcher()
	got, err := d.Dispatch(context.Background(), SendRejection{Recipient: "vendor@example.com", Reason: "bad"})
	if err != nil || got != "Email sent to vendor@example.com" {
		t.Fatalf("Dispatch = %q, %v", got, err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != (sentMail{"vendor@example.com", "bad"}) {
		t.Errorf("sent = %v", mailer.sent)
	}

	if _, err := d.Dispatch(context.Background(), SendRejection{Recipient: "Vendor AP <ap@example.com>", Reason: "bad"}); err != nil {
		t.Fatalf("display-name recipient: %v", err)
	}
	if mailer.sent[1].to != "ap@example.com" {
		t.Errorf("recipient = %q, want bare address", mailer.sent[1].to)
	}

	if _, err := d.Dispatch(context.Background(), SendRejection{Reason: "bad"}); !errors.Is(err, common.ErrNoRecipient) {
		t.Errorf("err = %v, want ErrNoRecipient", err)
	}
	if _, err := d.Dispatch(context.Background(), SendRejection{Recipient: "not an address", Reason: "bad"}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDispatch_FetchPeers(t *testing.T) {
	d, flags, _, _ := newTestDispatcher()
	flags.peers = 3
	got, err := d.DispatchRaw(context.Background(), ToolFetchPeers, `'f1'`)
	if err != nil || got != "Found 3 other invoices" {
		t.Fatalf("DispatchRaw = %q, %v", got, err)
	}
}

func TestDispatch_CollaboratorError(t *testing.T) {
	d, flags, _, _ := newTestDispatcher()
	flags.err = errors.New("db down")
	if _, err := d.Dispatch(context.Background(), FetchPeers{FileID: "f1"}); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("err = %v", err)
	}
}

func TestTools(t *testing.T) {
	names := map[string]bool{}
	for _, spec := range Tools() {
		if spec.Description == "" || spec.InputSchema == nil {
			t.Errorf("incomplete spec %+v", spec)
		}
		names[spec.Name] = true
	}
	for _, n := range []string{ToolUpdateFlag, ToolPushInvoice, ToolSendRejection, ToolFetchPeers} {
		if !names[n] {
			t.Errorf("tool %s not listed", n)
		}
	}
}
