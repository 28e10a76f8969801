package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/agent"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/ingest"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

type fakeText struct {
	calls int
	err   error
}

func (f *fakeText) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	f.calls++
	if f.err != nil {
		return extract.TextExtractionResult{}, f.err
	}
	return extract.TextExtractionResult{Text: "INVOICE INV-1", Pages: 1, Method: "pdf-ocr"}, nil
}

type fakeFields struct {
	res    invoice.Result
	err    error
	sender string
}

func (f *fakeFields) ExtractFields(_ context.Context, _ string, sender string) (invoice.Result, error) {
	f.sender = sender
	return f.res, f.err
}

type fakeAudit struct {
	ids []string
	err error
}

func (f *fakeAudit) Insert(_ context.Context, fileID string, _ map[string]any) (*entity.ExtractedInformation, error) {
	f.ids = append(f.ids, fileID)
	return &entity.ExtractedInformation{FileID: fileID}, f.err
}

type fakeDispatcher struct {
	calls  []agent.Call
	failOn string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, c agent.Call) (string, error) {
	f.calls = append(f.calls, c)
	if c.Tool() == f.failOn {
		return "", errors.New("collaborator down")
	}
	return "ok:" + c.Tool(), nil
}

type oneShot struct{ doc *ingest.Document }

func (s *oneShot) Name() string { return "one-shot" }
func (s *oneShot) Next(context.Context) (*ingest.Document, error) {
	d := s.doc
	s.doc = nil
	return d, nil
}

// tempDoc creates a document backed by a real temp dir so Release is observable.
func tempDoc(t *testing.T, name string) *ingest.Document {
	t.Helper()
	dir, err := os.MkdirTemp(t.TempDir(), "doc-*")
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	return ingest.NewDocument(p, "file-1", "vendor@example.com", "test", dir)
}

func assertReleased(t *testing.T, doc *ingest.Document) {
	t.Helper()
	if _, err := os.Stat(filepath.Dir(doc.Path)); !os.IsNotExist(err) {
		t.Errorf("document temp dir not released: %v", err)
	}
}

func validRaw() invoice.Record {
	return invoice.Normalize(map[string]any{
		constants.FieldCompanyName:   "Acme",
		constants.FieldInvoiceNumber: "INV-1",
		constants.FieldInvoiceDate:   "2024-01-01",
		constants.FieldTotalAmount:   100,
		constants.FieldGSTIN:         "12ABCDE3456F7Z8",
		constants.FieldCustomerName:  "Bob",
		constants.FieldTaxes:         map[string]any{"CGST": "9%", "SGST": "9%"},
		constants.FieldReceivedFrom:  "spoofed@evil.test",
	})
}

func newProcessor(fields *fakeFields, text *fakeText, audit *fakeAudit, disp *fakeDispatcher) *Processor {
	return NewProcessor(&oneShot{}, NewExtractor(text, fields, nil), audit, disp, nil)
}

func TestProcessDocument_Accepted(t *testing.T) {
	fields := &fakeFields{res: invoice.Parsed(validRaw())}
	audit := &fakeAudit{}
	disp := &fakeDispatcher{}
	p := newProcessor(fields, &fakeText{}, audit, disp)

	doc := tempDoc(t, "inv.pdf")
	out := p.ProcessDocument(context.Background(), doc)

	if out.Status != constants.OutcomeAccepted {
		t.Fatalf("status = %s (%s)", out.Status, out.Reason)
	}
	if out.Reason != invoice.PassMessage {
		t.Errorf("reason = %q", out.Reason)
	}
	if fields.sender != "vendor@example.com" {
		t.Errorf("sender passed to extractor = %q", fields.sender)
	}
	if got := out.Record[constants.FieldReceivedFrom]; got != "vendor@example.com" {
		t.Errorf("Received_From = %v, want trusted sender", got)
	}
	if got := out.Record.FileID(); got != "file-1" {
		t.Errorf("file_id = %q", got)
	}
	if _, ok := out.Record[constants.FieldTaxes].(string); !ok {
		t.Errorf("Taxes not flattened: %T", out.Record[constants.FieldTaxes])
	}
	if len(audit.ids) != 1 || audit.ids[0] != "file-1" {
		t.Errorf("audit = %v", audit.ids)
	}
	if len(disp.calls) != 2 {
		t.Fatalf("calls = %d", len(disp.calls))
	}
	if uf, ok := disp.calls[0].(agent.UpdateFlag); !ok || !uf.IsValid {
		t.Errorf("first call = %#v", disp.calls[0])
	}
	if _, ok := disp.calls[1].(agent.PushInvoice); !ok {
		t.Errorf("second call = %#v", disp.calls[1])
	}
	assertReleased(t, doc)
}

func TestProcessDocument_Rejected(t *testing.T) {
	raw := validRaw()
	raw[constants.FieldInvoiceNumber] = nil
	raw[constants.FieldTotalAmount] = 0
	disp := &fakeDispatcher{}
	p := newProcessor(&fakeFields{res: invoice.Parsed(raw)}, &fakeText{}, &fakeAudit{}, disp)

	doc := tempDoc(t, "scan.png")
	out := p.ProcessDocument(context.Background(), doc)

	if out.Status != constants.OutcomeRejected {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Validation == nil || out.Validation.Valid {
		t.Fatalf("validation = %+v", out.Validation)
	}
	if len(disp.calls) != 2 {
		t.Fatalf("calls = %d", len(disp.calls))
	}
	rej, ok := disp.calls[1].(agent.SendRejection)
	if !ok {
		t.Fatalf("second call = %#v", disp.calls[1])
	}
	if rej.Recipient != "vendor@example.com" || rej.Reason != out.Reason {
		t.Errorf("rejection = %+v", rej)
	}
	assertReleased(t, doc)
}

func TestProcessDocument_ParseFailure(t *testing.T) {
	failed := invoice.Failed(invoice.Failure{Reason: "Failed to parse JSON", Raw: "not json"})
	audit := &fakeAudit{}
	disp := &fakeDispatcher{}
	p := newProcessor(&fakeFields{res: failed}, &fakeText{}, audit, disp)

	doc := tempDoc(t, "inv.pdf")
	out := p.ProcessDocument(context.Background(), doc)

	if out.Status != constants.OutcomeFailed || out.Reason != "Failed to parse JSON" {
		t.Fatalf("outcome = %+v", out)
	}
	if !out.Record.IsFailure() {
		t.Errorf("record should be the failure form: %v", out.Record)
	}
	if len(audit.ids) != 0 || len(disp.calls) != 0 {
		t.Errorf("failure must not be stored or acted on: audit=%v calls=%d", audit.ids, len(disp.calls))
	}
	assertReleased(t, doc)
}

func TestProcessDocument_UnsupportedSkipsOCR(t *testing.T) {
	text := &fakeText{}
	p := newProcessor(&fakeFields{}, text, &fakeAudit{}, &fakeDispatcher{})

	doc := tempDoc(t, "notes.docx")
	out := p.ProcessDocument(context.Background(), doc)

	if out.Status != constants.OutcomeFailed || out.Reason != ProcessingFailedMessage {
		t.Fatalf("outcome = %+v", out)
	}
	if text.calls != 0 {
		t.Errorf("OCR ran %d times for an unsupported file", text.calls)
	}
	assertReleased(t, doc)
}

func TestExtractor_UnsupportedError(t *testing.T) {
	e := NewExtractor(&fakeText{}, &fakeFields{}, nil)
	_, err := e.Extract(context.Background(), "/tmp/a.txt", "id", "s")
	if !errors.Is(err, common.ErrUnsupportedFile) {
		t.Fatalf("err = %v", err)
	}
}

func TestProcessDocument_OCRError(t *testing.T) {
	p := newProcessor(&fakeFields{}, &fakeText{err: errors.New("tesseract missing")}, &fakeAudit{}, &fakeDispatcher{})
	doc := tempDoc(t, "inv.jpg")
	out := p.ProcessDocument(context.Background(), doc)
	if out.Status != constants.OutcomeFailed || out.Reason != ProcessingFailedMessage {
		t.Fatalf("outcome = %+v", out)
	}
	assertReleased(t, doc)
}

func TestProcessDocument_AuditFailureContinues(t *testing.T) {
	disp := &fakeDispatcher{}
	p := newProcessor(&fakeFields{res: invoice.Parsed(validRaw())}, &fakeText{}, &fakeAudit{err: errors.New("db down")}, disp)
	out := p.ProcessDocument(context.Background(), tempDoc(t, "inv.pdf"))
	if out.Status != constants.OutcomeAccepted || len(disp.calls) != 2 {
		t.Fatalf("outcome = %+v, calls = %d", out, len(disp.calls))
	}
}

func TestProcessDocument_ActionFailureStopsPlan(t *testing.T) {
	disp := &fakeDispatcher{failOn: agent.ToolUpdateFlag}
	p := newProcessor(&fakeFields{res: invoice.Parsed(validRaw())}, &fakeText{}, &fakeAudit{}, disp)
	doc := tempDoc(t, "inv.pdf")
	out := p.ProcessDocument(context.Background(), doc)

	if out.Status != constants.OutcomeFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if len(disp.calls) != 1 {
		t.Errorf("plan continued after failure: %d calls", len(disp.calls))
	}
	if len(out.Actions) != 1 || out.Actions[0].Error == "" {
		t.Errorf("actions = %+v", out.Actions)
	}
	assertReleased(t, doc)
}

func TestProcessNext(t *testing.T) {
	doc := tempDoc(t, "inv.pdf")
	src := &oneShot{doc: doc}
	p := NewProcessor(src, NewExtractor(&fakeText{}, &fakeFields{res: invoice.Parsed(validRaw())}, nil), &fakeAudit{}, &fakeDispatcher{}, nil)

	if out := p.ProcessNext(context.Background()); out.Status != constants.OutcomeAccepted {
		t.Fatalf("first = %+v", out)
	}
	if out := p.ProcessNext(context.Background()); out.Status != constants.OutcomeIdle {
		t.Fatalf("second = %+v", out)
	}
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }
func (brokenSource) Next(context.Context) (*ingest.Document, error) {
	return nil, errors.New("boom")
}

func TestProcessNext_SourceError(t *testing.T) {
	p := NewProcessor(brokenSource{}, nil, nil, nil, nil)
	if out := p.ProcessNext(context.Background()); out.Status != constants.OutcomeIdle {
		t.Fatalf("out = %+v", out)
	}
}
