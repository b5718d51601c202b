package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

var fencedJSON = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)```")

// decode unmarshals a model response into out. Models wrap JSON in prose or
// markdown fences despite instructions, so three shapes are accepted in
// order: the whole response, the first fenced block, the first balanced
// object.
func decode(content string, out any) error {
	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	candidate := extractJSONFromMarkdown(trimmed)
	if candidate == "" {
		return errors.New(errors.ErrCodeValidation, "response contains no JSON object").
			WithSuggestion("Answer with a single JSON object and nothing else")
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, "response JSON does not match the requested shape", err)
	}
	return nil
}

// extractJSONFromMarkdown returns the first fenced block, or failing that the
// first balanced {...} object. Braces inside JSON strings are ignored.
func extractJSONFromMarkdown(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
