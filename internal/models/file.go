package models

// FileFormat is the container type detected from magic bytes.
type FileFormat string

const (
	FormatPDF     FileFormat = "pdf"
	FormatDOC     FileFormat = "doc"
	FormatDOCX    FileFormat = "docx"
	FormatZIP     FileFormat = "zip"
	FormatUnknown FileFormat = "unknown"
)

// ArchiveEntry is one supported file inside an uploaded ZIP archive.
type ArchiveEntry struct {
	Filename string
	Data     []byte
}
