package app

import (
	"os"
	"path/filepath"
	"strings"
)

// normalizeDBPath expands a leading "~/" and cleans the path.
func normalizeDBPath(raw string) string {
	path := strings.TrimSpace(raw)
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(path)
}

// dbNameFromPath is the file name without extension, used as db.name on spans.
func dbNameFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
