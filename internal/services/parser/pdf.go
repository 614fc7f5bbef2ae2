package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDFText extracts text from PDF bytes using pdfcpu. pdfcpu works on
// files, so the bytes go through a per-call temp directory.
func (s *Service) extractPDFText(ctx context.Context, data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "aptus-pdf-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "resume.pdf")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	outDir := filepath.Join(tempDir, "content")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create content dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// Content files are named per page; collect them in page order
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = decodePDFContent(string(content))
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if text := pageTexts[pageNum]; text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(text)
		}
	}

	text := builder.String()
	s.logger.Debug().Int("pages", pageCount).Int("text_length", len(text)).Msg("PDF text extracted")
	return text, nil
}

var (
	pdfTextShowRe  = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)\s*(?:Tj|')`)
	pdfTextArrayRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	pdfStringRe    = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// decodePDFContent pulls text-show operators out of a raw PDF content
// stream. Handles the Tj, ', and TJ operators with simple string operands,
// which covers text-based resumes; scanned PDFs yield nothing.
func decodePDFContent(content string) string {
	var out strings.Builder

	for _, line := range strings.Split(content, "\n") {
		lineHasText := false
		for _, match := range pdfTextShowRe.FindAllString(line, -1) {
			if str := pdfStringRe.FindStringSubmatch(match); str != nil {
				out.WriteString(unescapePDFString(str[1]))
				lineHasText = true
			}
		}
		for _, match := range pdfTextArrayRe.FindAllStringSubmatch(line, -1) {
			for _, str := range pdfStringRe.FindAllStringSubmatch(match[1], -1) {
				out.WriteString(unescapePDFString(str[1]))
				lineHasText = true
			}
		}
		if lineHasText {
			out.WriteString("\n")
		}
	}

	return out.String()
}

func unescapePDFString(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			// carriage returns normalize away later
		case '(', ')', '\\':
			out.WriteByte(s[i])
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}
