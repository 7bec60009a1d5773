// Package vpath maps user-facing relative paths onto object keys and
// rebuilds a directory view from flat key listings.
//
// Layout inside a bucket:
//
//	{folder_type}/{segment}/.../{name}
//
// A directory is any prefix with at least one key below it. Empty
// directories are kept alive by a zero-byte marker at {prefix}/.keep.
package vpath

import (
	"strings"
	"unicode"

	"polysynergy/file-manager/internal/domain"
)

const (
	// Delimiter separates path segments in object keys.
	Delimiter = "/"
	// MarkerName is the file name of directory marker objects.
	MarkerName = ".keep"
	// MarkerContentType is written on marker objects.
	MarkerContentType = "application/x-directory"
)

// Normalize splits a relative path into clean segments. Empty and "."
// segments are dropped, leading separators are ignored, and ".." or
// segments with backslashes or control characters fail with InvalidPath.
func Normalize(p string) ([]string, error) {
	var segs []string
	for _, seg := range strings.Split(p, Delimiter) {
		switch seg {
		case "", ".":
			continue
		case "..":
			return nil, domain.InvalidPathf("path %q contains a parent reference", p)
		}
		if strings.ContainsRune(seg, '\\') || strings.IndexFunc(seg, unicode.IsControl) >= 0 {
			return nil, domain.InvalidPathf("path segment %q contains illegal characters", seg)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// ValidateName checks a single entry name (file or directory).
func ValidateName(name string) error {
	segs, err := Normalize(name)
	if err != nil {
		return err
	}
	if len(segs) != 1 || segs[0] != name {
		return domain.InvalidPathf("name %q must be a single path segment", name)
	}
	if name == MarkerName {
		return domain.InvalidPathf("name %q is reserved", name)
	}
	return nil
}

// Join renders segments back into a relative path.
func Join(segs []string) string {
	return strings.Join(segs, Delimiter)
}

// Key returns the object key of a file.
func Key(folder domain.FolderType, segs []string) string {
	if len(segs) == 0 {
		return string(folder)
	}
	return string(folder) + Delimiter + Join(segs)
}

// DirPrefix returns the listing prefix of a directory, with trailing delimiter.
func DirPrefix(folder domain.FolderType, segs []string) string {
	return Key(folder, segs) + Delimiter
}

// MarkerKey returns the key of a directory's marker object.
func MarkerKey(folder domain.FolderType, segs []string) string {
	return DirPrefix(folder, segs) + MarkerName
}

// IsMarker reports whether key is a directory marker.
func IsMarker(key string) bool {
	return key == MarkerName || strings.HasSuffix(key, Delimiter+MarkerName)
}

// Relative strips the folder partition from a key and returns the
// remaining segments. ok is false when key is outside the partition.
func Relative(folder domain.FolderType, key string) (segs []string, ok bool) {
	root := string(folder) + Delimiter
	if !strings.HasPrefix(key, root) {
		return nil, false
	}
	rest := strings.TrimSuffix(key[len(root):], Delimiter)
	if rest == "" {
		return nil, true
	}
	return strings.Split(rest, Delimiter), true
}

// Contains reports whether inner equals outer or lies below it.
func Contains(outer, inner []string) bool {
	if len(inner) < len(outer) {
		return false
	}
	for i := range outer {
		if outer[i] != inner[i] {
			return false
		}
	}
	return true
}
