package assets

import (
	"path"
	"strings"
)

// DefaultContentType is returned for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"json": "application/json",
	"ico":  "image/x-icon",
	"js":   "text/javascript",
	"html": "text/html",
	"css":  "text/css",
	"txt":  "text/plain",
	"":     "text/plain",
	"gif":  "image/gif",
	"png":  "image/png",
	"jpg":  "image/jpg",
}

// ContentType maps a file name to its MIME type by extension, case-insensitively.
// A name without an extension is text/plain.
func ContentType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return DefaultContentType
}
