package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service extracts UTF-8 text from resume files. Format detection is by
// magic bytes only; the filename is never trusted.
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.FileParser = (*Service)(nil)

// NewService creates a new file parser
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04} // PK\x03\x04
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0} // OLE2 compound file (legacy .doc)
)

// DetectFormat identifies the container from magic bytes. A PK archive is a
// DOCX when it carries word/document.xml, otherwise a plain ZIP.
func (s *Service) DetectFormat(data []byte) models.FileFormat {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return models.FormatPDF
	case bytes.HasPrefix(data, oleMagic):
		return models.FormatDOC
	case bytes.HasPrefix(data, zipMagic):
		if isDocxArchive(data) {
			return models.FormatDOCX
		}
		return models.FormatZIP
	}
	return models.FormatUnknown
}

// Parse returns the extracted text for a single document. ZIP archives are
// not parseable directly; callers expand them first.
func (s *Service) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("file %s is empty: %w", filename, common.ErrInvalidInput)
	}

	format := s.DetectFormat(data)
	s.logger.Debug().
		Str("filename", filename).
		Str("format", string(format)).
		Int("size_bytes", len(data)).
		Msg("Parsing resume file")

	var text string
	var err error
	switch format {
	case models.FormatPDF:
		text, err = s.extractPDFText(ctx, data)
	case models.FormatDOCX:
		text, err = extractDocxText(data)
	case models.FormatDOC:
		text, err = extractDocText(data)
	case models.FormatZIP:
		return "", fmt.Errorf("file %s is an archive, expand before parsing: %w", filename, common.ErrInvalidInput)
	default:
		return "", fmt.Errorf("file %s has unsupported format: %w", filename, common.ErrInvalidInput)
	}
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %v: %w", filename, err, common.ErrInvalidInput)
	}

	text = normalizeText(text)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("file %s produced no text: %w", filename, common.ErrInvalidInput)
	}
	return text, nil
}

// ExpandArchive lists the supported entries of a ZIP archive. Nested
// archives are expanded one level; directories and unsupported entries are
// skipped.
func (s *Service) ExpandArchive(ctx context.Context, data []byte) ([]models.ArchiveEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %v: %w", err, common.ErrInvalidInput)
	}

	entries := []models.ArchiveEntry{}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := file.Name
		if strings.HasPrefix(baseName(name), ".") || strings.Contains(name, "__MACOSX") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			s.logger.Warn().Err(err).Str("entry", name).Msg("Skipping unreadable archive entry")
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			s.logger.Warn().Err(err).Str("entry", name).Msg("Skipping unreadable archive entry")
			continue
		}

		switch s.DetectFormat(content) {
		case models.FormatPDF, models.FormatDOC, models.FormatDOCX:
			entries = append(entries, models.ArchiveEntry{Filename: baseName(name), Data: content})
		case models.FormatZIP:
			nested, err := s.ExpandArchive(ctx, content)
			if err != nil {
				s.logger.Warn().Err(err).Str("entry", name).Msg("Skipping unreadable nested archive")
				continue
			}
			entries = append(entries, nested...)
		default:
			s.logger.Debug().Str("entry", name).Msg("Skipping unsupported archive entry")
		}
	}

	s.logger.Debug().Int("entries", len(entries)).Msg("Archive expanded")
	return entries, nil
}

// isDocxArchive probes a PK container for the Word document part.
func isDocxArchive(data []byte) bool {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, file := range reader.File {
		if file.Name == "word/document.xml" {
			return true
		}
	}
	return false
}

// normalizeText collapses Windows line endings and trims trailing spaces
// while preserving line structure.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
