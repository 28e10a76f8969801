package constants

import "strings"

// FileKind is the OCR route a document takes.
type FileKind string

const (
	FileKindImage       FileKind = "IMAGE"
	FileKindPDF         FileKind = "PDF"
	FileKindUnsupported FileKind = ""
)

// AllowedExtensions holds the file extensions accepted for invoice extraction.
var AllowedExtensions = map[string]FileKind{
	"pdf":  FileKindPDF,
	"jpg":  FileKindImage,
	"jpeg": FileKindImage,
	"png":  FileKindImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindOf reports the OCR route for an extension, with or without the dot.
func KindOf(ext string) FileKind {
	return AllowedExtensions[NormalizeExt(ext)]
}
