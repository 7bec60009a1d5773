package service

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const defaultContentType = "application/octet-stream"

// sniffLen is how much of the payload filetype needs for magic-byte detection.
const sniffLen = 262

// DetectContentType resolves the content type of an upload: the supplied
// value, else the extension, else the payload's magic bytes.
func DetectContentType(filename string, content []byte, supplied string) string {
	if ct := strings.TrimSpace(supplied); ct != "" {
		return ct
	}
	if ct := contentTypeByExtension(filename); ct != "" {
		return ct
	}
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return defaultContentType
}

func contentTypeByExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		ct, _, _ = strings.Cut(ct, ";")
		return strings.TrimSpace(ct)
	}
	if kind := filetype.GetType(ext[1:]); kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return ""
}

// fileTypeClasses maps list filter names to content-type prefixes.
var fileTypeClasses = map[string][]string{
	"image":    {"image/"},
	"video":    {"video/"},
	"audio":    {"audio/"},
	"document": {"application/pdf", "application/msword", "application/vnd.openxmlformats-officedocument", "text/"},
	"archive":  {"application/zip", "application/x-rar", "application/x-tar", "application/gzip", "application/x-7z-compressed"},
	"text":     {"text/"},
}

// MatchesFileType reports whether contentType belongs to the filter class.
// Unknown filter names fall back to a substring match on the content type.
func MatchesFileType(contentType, filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	contentType = strings.ToLower(contentType)
	if prefixes, ok := fileTypeClasses[filter]; ok {
		for _, p := range prefixes {
			if strings.HasPrefix(contentType, p) {
				return true
			}
		}
		return false
	}
	return strings.Contains(contentType, filter)
}
