package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// extractDocxText reads word/document.xml from the DOCX container and
// flattens its text runs. Paragraphs, line breaks, and tabs map to their
// plain-text equivalents.
func extractDocxText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX container: %w", err)
	}

	var docFile *zip.File
	for _, file := range reader.File {
		if file.Name == "word/document.xml" {
			docFile = file
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("DOCX container missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document part: %w", err)
	}
	defer rc.Close()

	return flattenDocumentXML(rc)
}

// flattenDocumentXML walks the WordprocessingML token stream. Only the
// text-bearing elements matter: w:t carries runs, w:p ends a paragraph,
// w:br and w:tab are explicit breaks.
func flattenDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var out strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document XML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br":
				out.WriteString("\n")
			case "tab":
				out.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return out.String(), nil
}

// extractDocText pulls readable text out of a legacy OLE2 .doc file. The
// binary format interleaves text with control structures; this scans for
// runs of printable characters, which recovers the document body for
// typical resumes without a full OLE parser.
func extractDocText(data []byte) (string, error) {
	var out strings.Builder
	var run []byte

	flush := func() {
		// Short runs are format noise, not prose
		if utf8.RuneCount(run) >= 4 {
			out.Write(run)
			out.WriteString("\n")
		}
		run = run[:0]
	}

	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == '\r' || b == '\n' || b == 0x0B:
			flush()
		case b == '\t' || (b >= 0x20 && b < 0x7F):
			run = append(run, b)
		default:
			flush()
		}
	}
	flush()

	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable text in DOC file")
	}
	return text, nil
}
