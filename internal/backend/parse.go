package backend

import (
	"encoding/json"
	"strings"
)

// The language-model service guarantees no structured output, so these
// parsers accept the expected shape, a JSON rendering of it, or fall
// back to treating the whole response as an unstructured best-effort
// value. They only give up on an empty response.

// ParseCategory reads a category label from a free-text response.
// Expected shape: the label on its own first line, optionally followed
// by a reason line. A JSON object with "category"/"reason" fields is
// tolerated. Returns ok=false only when no label could be recovered.
func ParseCategory(response string) (label, reason string, ok bool) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return "", "", false
	}

	if obj, found := extractJSONObject(trimmed); found {
		if cat, _ := obj["category"].(string); cat != "" {
			r, _ := obj["reason"].(string)
			return normalizeLabel(cat), strings.TrimSpace(r), true
		}
	}

	lines := nonEmptyLines(trimmed)
	label = normalizeLabel(lines[0])
	if len(lines) > 1 {
		reason = lines[1]
	}
	return label, reason, true
}

// ParseActionItems reads an item-per-line list from a free-text
// response, stripping bullet and numbering prefixes. A JSON array of
// strings or of {"task": ...} objects is tolerated. The result is never
// nil; lines that read as "none" produce an empty list.
func ParseActionItems(response string) []string {
	items := []string{}

	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return items
	}

	if arr, found := extractJSONArray(trimmed); found {
		for _, elem := range arr {
			switch v := elem.(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					items = append(items, s)
				}
			case map[string]interface{}:
				if task, _ := v["task"].(string); strings.TrimSpace(task) != "" {
					items = append(items, strings.TrimSpace(task))
				}
			}
		}
		return items
	}

	for _, line := range nonEmptyLines(trimmed) {
		item := listLinePattern.ReplaceAllString(line, "")
		item = strings.TrimSpace(item)
		if item == "" || isNoneMarker(item) {
			continue
		}
		items = append(items, item)
	}

	return items
}

// normalizeLabel lowercases a label and drops trailing punctuation the
// model tends to add.
func normalizeLabel(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `."':`))
}

// isNoneMarker reports whether a line is a "no items" filler rather
// than a real action item.
func isNoneMarker(line string) bool {
	switch strings.ToLower(strings.Trim(line, ".")) {
	case "none", "n/a", "no action items", "no actions":
		return true
	}
	return false
}

// nonEmptyLines splits s into trimmed, non-empty lines. The input is
// known to be non-empty, so the result has at least one element.
func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		lines = []string{strings.TrimSpace(s)}
	}
	return lines
}

// extractJSONObject finds the first '{' in s and attempts to decode an
// object from there, so responses that wrap JSON in prose still parse.
func extractJSONObject(s string) (map[string]interface{}, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return nil, false
	}

	var obj map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

// extractJSONArray is the array counterpart of extractJSONObject.
func extractJSONArray(s string) ([]interface{}, bool) {
	start := strings.Index(s, "[")
	if start < 0 {
		return nil, false
	}

	var arr []interface{}
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	if err := dec.Decode(&arr); err != nil {
		return nil, false
	}
	return arr, true
}
