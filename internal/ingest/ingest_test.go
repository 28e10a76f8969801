package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/google/uuid"
)

func TestSenderFromHeader(t *testing.T) {
	cases := map[string]string{
		"Alice Vendor <alice@vendor.test>": "alice@vendor.test",
		" bob@vendor.test ":                "bob@vendor.test",
		"Undisclosed":                      UnknownMailSender,
		"":                                 UnknownMailSender,
	}
	for in, want := range cases {
		if got := SenderFromHeader(in); got != want {
			t.Errorf("SenderFromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanFilename(t *testing.T) {
	if got := CleanFilename(`inv:oice/2024?.pdf`); got != "inv_oice_2024_.pdf" {
		t.Errorf("got %q", got)
	}
	for _, name := range []string{"   ", ".", "..", " .. "} {
		if got := CleanFilename(name); !strings.HasPrefix(got, "attachment_") {
			t.Errorf("CleanFilename(%q) = %q", name, got)
		}
	}
}

func TestGeneratedFilename(t *testing.T) {
	cases := []struct {
		ct     string
		prefix string
		suffix string
	}{
		{"application/pdf", "invoice_", ".pdf"},
		{"image/png", "invoice_", ".png"},
		{"application/zip", "attachment_", ".zip"},
		{"", "attachment_", ".octet-stream"},
	}
	for _, tc := range cases {
		got := GeneratedFilename(tc.ct)
		if !strings.HasPrefix(got, tc.prefix) || !strings.HasSuffix(got, tc.suffix) {
			t.Errorf("GeneratedFilename(%q) = %q", tc.ct, got)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string, mod time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := os.Chtimes(p, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", p, err)
	}
	return p
}

func TestDirectorySource_NewestFirstAndDedup(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, root, "old.pdf", "old", now.Add(-2*time.Hour))
	writeFile(t, root, "new.png", "new", now.Add(-time.Minute))
	writeFile(t, root, "notes.txt", "skip", now)
	writeFile(t, root, ".hidden.pdf", "hidden", now)

	src := NewDirectorySource(DirectoryConfig{Root: root, SkipHidden: true}, nil, nil)
	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil || first == nil {
		t.Fatalf("first Next = %v, %v", first, err)
	}
	if filepath.Base(first.Path) != "new.png" {
		t.Fatalf("first = %s, want new.png", first.Path)
	}
	if first.Sender != UnknownUploader || len(first.FileID) != 64 {
		t.Errorf("doc = %+v", first)
	}
	if filepath.Dir(first.Path) == root {
		t.Errorf("document must be a temp copy, got %s", first.Path)
	}

	second, err := src.Next(ctx)
	if err != nil || second == nil || filepath.Base(second.Path) != "old.pdf" {
		t.Fatalf("second Next = %+v, %v", second, err)
	}

	third, err := src.Next(ctx)
	if err != nil || third != nil {
		t.Fatalf("third Next = %+v, %v; want nothing", third, err)
	}

	for _, d := range []*Document{first, second} {
		if err := d.Release(); err != nil {
			t.Errorf("release: %v", err)
		}
		if _, err := os.Stat(d.Path); !os.IsNotExist(err) {
			t.Errorf("temp copy %s not removed", d.Path)
		}
		if err := d.Release(); err != nil {
			t.Errorf("second release: %v", err)
		}
	}
}

func TestDirectorySource_SeenFunc(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "a", time.Now())

	var asked []string
	seen := func(_ context.Context, id string) (bool, error) {
		asked = append(asked, id)
		return true, nil
	}
	src := NewDirectorySource(DirectoryConfig{Root: root}, seen, nil)
	doc, err := src.Next(context.Background())
	if err != nil || doc != nil {
		t.Fatalf("Next = %+v, %v; want nothing", doc, err)
	}
	if len(asked) != 1 {
		t.Fatalf("seen asked %d times", len(asked))
	}
	// the stat cache answers the second time
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(asked) != 1 {
		t.Errorf("seen asked again: %v", asked)
	}
}

func TestDirectorySource_MissingRoot(t *testing.T) {
	src := NewDirectorySource(DirectoryConfig{}, nil, nil)
	if _, err := src.Next(context.Background()); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestCheckoutFile(t *testing.T) {
	src := writeFile(t, t.TempDir(), "inv.pdf", "same bytes", time.Now())
	a, err := CheckoutFile(src, "ap@vendor.test")
	if err != nil {
		t.Fatalf("CheckoutFile: %v", err)
	}
	b, err := CheckoutFile(src, "ap@vendor.test")
	if err != nil {
		t.Fatalf("CheckoutFile: %v", err)
	}
	defer func() { _ = b.Release() }()

	if a.FileID != b.FileID || a.Path == b.Path {
		t.Errorf("same content must share an id but not a path: %+v %+v", a, b)
	}
	if a.Sender != "ap@vendor.test" {
		t.Errorf("sender = %q", a.Sender)
	}
	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("release removed the original: %v", err)
	}
}

type stubSource struct {
	name string
	doc  *Document
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Next(context.Context) (*Document, error) {
	return s.doc, s.err
}

func TestChain(t *testing.T) {
	want := &Document{FileID: "f1"}
	c := NewChain(nil,
		stubSource{name: "broken", err: errors.New("imap down")},
		stubSource{name: "empty"},
		stubSource{name: "dir", doc: want},
	)
	got, err := c.Next(context.Background())
	if err != nil || got != want {
		t.Fatalf("Next = %v, %v", got, err)
	}

	empty := NewChain(nil, stubSource{name: "a"}, stubSource{name: "b", err: errors.New("x")})
	if got, err := empty.Next(context.Background()); got != nil || err != nil {
		t.Fatalf("empty chain = %v, %v", got, err)
	}
}

const sampleMail = "From: Vendor Billing <billing@vendor.test>\r\n" +
	"To: ap@buyer.test\r\n" +
	"Subject: Invoice INV-7\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please find the invoice attached.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"INV:7.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--XYZ--\r\n"

func TestParseInvoiceMail(t *testing.T) {
	sender, att, err := ParseInvoiceMail(strings.NewReader(sampleMail))
	if err != nil {
		t.Fatalf("ParseInvoiceMail: %v", err)
	}
	if sender != "billing@vendor.test" {
		t.Errorf("sender = %q", sender)
	}
	if att == nil {
		t.Fatalf("attachment not found")
	}
	if att.Filename != "INV_7.pdf" {
		t.Errorf("filename = %q", att.Filename)
	}
	if string(att.Content) != "%PDF-1.4\n" {
		t.Errorf("content = %q", att.Content)
	}
}

func TestParseInvoiceMail_NoAttachment(t *testing.T) {
	msg := "From: someone\r\nSubject: invoice question\r\nContent-Type: text/plain\r\n\r\nhello\r\n"
	sender, att, err := ParseInvoiceMail(strings.NewReader(msg))
	if err != nil {
		t.Fatalf("ParseInvoiceMail: %v", err)
	}
	if att != nil {
		t.Errorf("unexpected attachment %+v", att)
	}
	if sender != UnknownMailSender {
		t.Errorf("sender = %q", sender)
	}
}

type fakeIMAP struct {
	ids        []uint32
	bodies     map[uint32]string
	criteria   *imap.SearchCriteria
	fetched    *imap.SeqSet
	loggedOut  bool
	loginError error
}

func (f *fakeIMAP) Login(string, string) error { return f.loginError }
func (f *fakeIMAP) Select(string, bool) (*imap.MailboxStatus, error) {
	return &imap.MailboxStatus{Name: "INBOX"}, nil
}
func (f *fakeIMAP) Search(c *imap.SearchCriteria) ([]uint32, error) {
	f.criteria = c
	return f.ids, nil
}
func (f *fakeIMAP) Fetch(seqset *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	f.fetched = seqset
	for _, id := range f.ids {
		body, ok := f.bodies[id]
		if !ok || !seqset.Contains(id) {
			continue
		}
		msg := imap.NewMessage(id, nil)
		msg.Body[&imap.BodySectionName{}] = bytes.NewReader([]byte(body))
		ch <- msg
	}
	return nil
}
func (f *fakeIMAP) Logout() error {
	f.loggedOut = true
	return nil
}

func TestMailboxSource_NoUnread(t *testing.T) {
	fake := &fakeIMAP{}
	src := NewMailboxSource(MailboxConfig{Addr: "imap.test:993"}, nil)
	src.dial = func(context.Context, MailboxConfig) (imapSession, error) { return fake, nil }

	doc, err := src.Next(context.Background())
	if err != nil || doc != nil {
		t.Fatalf("Next = %v, %v", doc, err)
	}
	if fake.criteria == nil || fake.criteria.Header.Get("Subject") != "invoice" {
		t.Errorf("criteria = %+v", fake.criteria)
	}
	if len(fake.criteria.WithoutFlags) != 1 || fake.criteria.WithoutFlags[0] != imap.SeenFlag {
		t.Errorf("search must exclude seen mail: %+v", fake.criteria.WithoutFlags)
	}
	if !fake.loggedOut {
		t.Errorf("session not logged out")
	}
}

func TestMailboxSource_LoginFailure(t *testing.T) {
	fake := &fakeIMAP{loginError: errors.New("bad credentials")}
	src := NewMailboxSource(MailboxConfig{Addr: "imap.test:993"}, nil)
	src.dial = func(context.Context, MailboxConfig) (imapSession, error) { return fake, nil }

	if _, err := src.Next(context.Background()); err == nil {
		t.Fatalf("expected login error")
	}
	if !fake.loggedOut {
		t.Errorf("session not logged out after failure")
	}
}

func TestMailboxSource_Attachment(t *testing.T) {
	fake := &fakeIMAP{
		ids: []uint32{2, 5},
		bodies: map[uint32]string{
			2: "From: old@vendor.test\r\nSubject: invoice\r\n\r\nstale\r\n",
			5: sampleMail,
		},
	}
	src := NewMailboxSource(MailboxConfig{Addr: "imap.test:993"}, nil)
	src.dial = func(context.Context, MailboxConfig) (imapSession, error) { return fake, nil }

	doc, err := src.Next(context.Background())
	if err != nil || doc == nil {
		t.Fatalf("Next = %v, %v", doc, err)
	}
	if fake.fetched == nil || !fake.fetched.Contains(5) || fake.fetched.Contains(2) {
		t.Errorf("fetched = %v, want only the latest message", fake.fetched)
	}
	if doc.Sender != "billing@vendor.test" || doc.Origin != "mailbox" {
		t.Errorf("doc = %+v", doc)
	}
	if _, err := uuid.Parse(doc.FileID); err != nil {
		t.Errorf("file id %q is not a uuid: %v", doc.FileID, err)
	}
	if filepath.Base(doc.Path) != "INV_7.pdf" {
		t.Errorf("path = %s", doc.Path)
	}
	content, err := os.ReadFile(doc.Path)
	if err != nil || string(content) != "%PDF-1.4\n" {
		t.Fatalf("content = %q, %v", content, err)
	}
	if !fake.loggedOut {
		t.Errorf("session not logged out")
	}

	dir := filepath.Dir(doc.Path)
	if err := doc.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s not removed", dir)
	}
}
