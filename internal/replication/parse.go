package replication

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject pulls exactly one syntactically complete JSON object out
// of a model response. A markdown fence around the object is tolerated, but
// the remaining fragment must start with '{', end with '}' and parse cleanly;
// anything else is a hard failure with no partial extraction.
func extractJSONObject(content string) (string, error) {
	fragment := strings.TrimSpace(content)
	if fragment == "" {
		return "", fmt.Errorf("empty model response")
	}

	if strings.HasPrefix(fragment, "```") {
		start := strings.Index(fragment, "{")
		end := strings.LastIndex(fragment, "}")
		if start == -1 || end == -1 || end < start {
			return "", fmt.Errorf("fenced response contains no JSON object: %s", snippet(fragment))
		}
		fragment = strings.TrimSpace(fragment[start : end+1])
	}

	if !strings.HasPrefix(fragment, "{") || !strings.HasSuffix(fragment, "}") {
		return "", fmt.Errorf("response is not a JSON object: %s", snippet(fragment))
	}
	if !json.Valid([]byte(fragment)) {
		return "", fmt.Errorf("response is not valid JSON: %s", snippet(fragment))
	}
	return fragment, nil
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// sanitizeList trims entries, drops non-strings and empties, and caps the
// list length. The schema should already constrain shape; the upstream
// response is treated as untrusted anyway.
func sanitizeList(raw []interface{}, maxItems int) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if maxItems > 0 && len(out) >= maxItems {
			break
		}
	}
	return out
}
