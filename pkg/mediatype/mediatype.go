// Package mediatype resolves content types and media kinds for uploaded files.
package mediatype

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	OctetStream = "application/octet-stream"

	KindImage = "image"
	KindVideo = "video"
)

var fallbackTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// Resolve picks the declared type unless it is empty or generic, then the
// type registered for the file extension, then application/octet-stream.
func Resolve(name, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, OctetStream) {
		return declared
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return OctetStream
	}

	if ct, ok := fallbackTypes[ext]; ok {
		return ct
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return OctetStream
}

// Kind maps a content type to the media kind stored on an asset.
func Kind(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return KindVideo
	}

	return KindImage
}
