package preview

import "strings"

// StagePath maps a stored file path onto the frontend staging tree. A leading
// frontend/ prefix is stripped and anything not already under src/ is moved
// there. Backend files are excluded; the second return reports inclusion.
func StagePath(storedPath string) (string, bool) {
	cleaned := strings.TrimSpace(storedPath)
	if cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "backend/") {
		return "", false
	}
	cleaned = strings.TrimPrefix(cleaned, "frontend/")
	if strings.HasPrefix(cleaned, "backend/") {
		return "", false
	}
	if !strings.HasPrefix(cleaned, "src/") {
		cleaned = "src/" + cleaned
	}
	return cleaned, true
}
