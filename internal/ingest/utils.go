package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

// AllowedExt checks if a file extension is an importable workbook.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
// Excel lock files ("~$report.xlsx") count as hidden too.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
