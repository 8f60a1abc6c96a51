package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for Yape report uploads.
var AllowedExtensions = map[string]struct{}{
	"xlsx": {},
}

// XLSXContentType is the MIME type of .xlsx workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is an accepted upload extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
