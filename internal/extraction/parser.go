package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// candidateFact is the raw shape an LLM extraction response item is
// unmarshaled into, before category/importance validation.
type candidateFact struct {
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Importance *float64 `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

const defaultImportance = 0.6

// parsePartialJSONArray recovers a JSON array of objects from LLM output
// that may be wrapped in a markdown code fence, have a trailing comma
// before a closing bracket or brace, or be truncated mid-object or
// mid-string. It recovers every complete top-level object up to the last
// balanced closing brace and ignores anything after it. It returns an
// error only when no complete object can be recovered at all.
func parsePartialJSONArray(raw string) ([]candidateFact, error) {
	text := stripCodeFence(raw)

	start := strings.IndexByte(text, '[')
	if start == -1 {
		return nil, fmt.Errorf("extraction: no JSON array found in response")
	}

	objects := extractTopLevelObjects(text[start+1:])
	if len(objects) == 0 {
		return nil, fmt.Errorf("extraction: no recoverable JSON objects in response")
	}

	facts := make([]candidateFact, 0, len(objects))
	for _, obj := range objects {
		var f candidateFact
		if err := json.Unmarshal([]byte(removeTrailingCommas(obj)), &f); err != nil {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// removeTrailingCommas drops a comma that appears (outside any string)
// immediately before a closing '}' or ']', which encoding/json otherwise
// rejects as invalid. LLM output frequently leaves these behind.
func removeTrailingCommas(s string) string {
	var out strings.Builder
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			out.WriteByte(c)
			if escape {
				escape = false
			} else if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}

		out.WriteByte(c)
	}
	return out.String()
}

func stripCodeFence(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// extractTopLevelObjects scans body (the array's contents, after the
// opening '[') for every complete, brace-balanced `{...}` object. It
// tolerates trailing commas and stops recovering as soon as an object is
// left unterminated (truncation mid-object or mid-string), discarding that
// final partial object rather than erroring.
func extractTopLevelObjects(body string) []string {
	var objects []string

	depth := 0
	inString := false
	escape := false
	objStart := -1

	for i := 0; i < len(body); i++ {
		c := body[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' {
			if inString {
				escape = true
			}
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && objStart != -1 {
					objects = append(objects, body[objStart:i+1])
					objStart = -1
				}
			}
		}
	}

	return objects
}

// parseLLMResponse parses an extraction LLM response into facts, filtering
// by the allowed category set, defaulting missing importance to 0.6,
// clamping importance to [0, 1], and skipping items missing content or
// category or whose category isn't in allowed. It never errors: invalid
// input of any kind yields an empty slice (spec §4.8).
func parseLLMResponse(response string, allowed []Category) []Fact {
	allowedSet := make(map[Category]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	candidates, err := parsePartialJSONArray(response)
	if err != nil {
		return nil
	}

	facts := make([]Fact, 0, len(candidates))
	for _, c := range candidates {
		if c.Content == "" || c.Category == "" {
			continue
		}
		category := Category(c.Category)
		if !allowedSet[category] {
			continue
		}

		importance := defaultImportance
		if c.Importance != nil {
			importance = clamp01(*c.Importance)
		}

		facts = append(facts, Fact{
			Content:    c.Content,
			Category:   category,
			Importance: importance,
			Tags:       c.Tags,
		})
	}
	return facts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
