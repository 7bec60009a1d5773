package domain

import (
	"strings"
	"time"
)

// EntryType distinguishes files from virtual directories.
type EntryType string

const (
	EntryFile      EntryType = "file"
	EntryDirectory EntryType = "directory"
)

// FolderType is the top-level partition inside a project's namespace.
type FolderType string

const (
	FolderFiles     FolderType = "files"     // user-authored content
	FolderGenerated FolderType = "generated" // content produced by nodes/agents
)

// Valid reports whether f is one of the known partitions.
func (f FolderType) Valid() bool {
	return f == FolderFiles || f == FolderGenerated
}

// VirtualEntry is a file or directory as presented to callers.
// Directories have no stored payload; Size and ContentType are empty for them.
type VirtualEntry struct {
	Path         []string   `json:"path"`
	Name         string     `json:"name"`
	Type         EntryType  `json:"type"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"contentType,omitempty"`
	LastModified time.Time  `json:"lastModified"`
	IsPublic     bool       `json:"isPublic"` // authoritative from Upload and Metadata only, see Listing
	Folder       FolderType `json:"folderType"`
	URL          string     `json:"url,omitempty"` // presigned download link, files only
}

// IsDirectory is a shorthand for Type == EntryDirectory.
func (e *VirtualEntry) IsDirectory() bool {
	return e.Type == EntryDirectory
}

// FullPath joins Path and Name with "/".
func (e *VirtualEntry) FullPath() string {
	if len(e.Path) == 0 {
		return e.Name
	}
	return strings.Join(e.Path, "/") + "/" + e.Name
}

// Listing is one page of a directory listing. Listings do not read object
// metadata, so with unified bucket naming every entry reports IsPublic false;
// ask Metadata for a file's real visibility. With legacy naming the flag
// follows the bucket and is accurate.
type Listing struct {
	Path    string         `json:"path"`
	Entries []VirtualEntry `json:"entries"`
	Total   int            `json:"total"` // entries matching the filters, before pagination
}
