package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/aptus/internal/common"
)

// extractJSONObject finds the first balanced {...} object in free-form model
// output, tolerating leading/trailing prose and Markdown code fences. Brace
// counting is string-aware so braces inside JSON string values do not
// unbalance the scan.
func extractJSONObject(content string) (string, error) {
	cleaned := stripFences(content)

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response: %w", common.ErrLLMFormat)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in response: %w", common.ErrLLMFormat)
}

// stripFences removes Markdown code fences so a fenced ```json block parses
// the same as bare JSON.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}

	var out strings.Builder
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}
