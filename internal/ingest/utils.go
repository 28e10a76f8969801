package ingest

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Fallback senders when provenance cannot be recovered.
const (
	UnknownMailSender = "unknown@sender.com"
	UnknownUploader   = "unknown@uploader.com"
)

var (
	reUnsafeName  = regexp.MustCompile(`[<>:"/\\|?*]`)
	reAngleSender = regexp.MustCompile(`<(.*?)>`)
)

// AllowedExt checks if a file extension is in the allowed set (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// CleanFilename replaces characters that are unsafe in file names. Names
// that would resolve to a directory get a generated one.
func CleanFilename(name string) string {
	name = strings.TrimSpace(reUnsafeName.ReplaceAllString(name, "_"))
	if name == "" || name == "." || name == ".." {
		return "attachment_" + shortID()
	}
	return name
}

// GeneratedFilename names an attachment that arrived without one, from its content type.
func GeneratedFilename(contentType string) string {
	ct := strings.ToLower(contentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	ext := "bin"
	if i := strings.LastIndex(ct, "/"); i >= 0 && i < len(ct)-1 {
		ext = ct[i+1:]
	}
	switch {
	case strings.Contains(ct, "pdf"):
		return "invoice_" + shortID() + ".pdf"
	case strings.Contains(ct, "image"):
		return "invoice_" + shortID() + "." + ext
	default:
		return "attachment_" + shortID() + "." + ext
	}
}

// SenderFromHeader extracts the address from a From header value.
func SenderFromHeader(from string) string {
	if m := reAngleSender.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	if strings.Contains(from, "@") {
		return strings.TrimSpace(from)
	}
	return UnknownMailSender
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
