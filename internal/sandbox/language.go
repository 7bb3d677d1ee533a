package sandbox

import "strings"

// NormalizeLanguage maps a free-form language hint to a supported runtime.
// Anything starting with "py" becomes python; shell variants become bash;
// unknown or empty hints fall back to python, the default replication runtime.
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch {
	case strings.HasPrefix(l, "py"):
		return "python"
	case l == "sh" || l == "bash" || l == "shell":
		return "bash"
	default:
		return "python"
	}
}
