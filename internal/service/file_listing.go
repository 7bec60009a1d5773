package service

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"time"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"
	"polysynergy/file-manager/internal/vpath"
)

// Sort keys and orders accepted by List.
const (
	SortByName     = "name"
	SortBySize     = "size"
	SortByModified = "modified"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListOptions filters, orders and pages a directory listing.
type ListOptions struct {
	Path      string
	FileType  string // class (image, video, ...) or content-type substring; files only
	Search    string // case-insensitive name substring
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (o *ListOptions) normalize() {
	switch o.SortBy {
	case SortByName, SortBySize, SortByModified:
	default:
		o.SortBy = SortByName
	}
	if !strings.EqualFold(o.SortOrder, SortDesc) {
		o.SortOrder = SortAsc
	} else {
		o.SortOrder = SortDesc
	}
	switch {
	case o.Limit == 0:
		o.Limit = DefaultListLimit
	case o.Limit < 1:
		o.Limit = 1
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// List returns the immediate children of a directory. Directories come
// first; filters apply before sorting and pagination.
func (ws *Workspace) List(ctx context.Context, opts ListOptions) (*domain.Listing, error) {
	opts.normalize()
	segs, err := vpath.Normalize(opts.Path)
	if err != nil {
		return nil, err
	}

	children, exists, err := vpath.ListChildren(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, segs))
	if err != nil {
		return nil, storeError("list", err)
	}
	if !exists && len(segs) > 0 {
		return nil, domain.NotFoundf("directory %s does not exist", vpath.Join(segs))
	}

	search := strings.ToLower(opts.Search)
	entries := make([]domain.VirtualEntry, 0, len(children))
	for _, c := range children {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		childSegs := append(append([]string{}, segs...), c.Name)
		if c.IsDir {
			entries = append(entries, *ws.dirEntry(childSegs, c.Modified))
			continue
		}
		entry := ws.fileEntry(childSegs, &storage.ObjectAttrs{
			Key:          c.Key,
			Size:         c.Size,
			ContentType:  c.ContentType,
			LastModified: c.Modified,
		})
		if !MatchesFileType(entry.ContentType, opts.FileType) {
			continue
		}
		entries = append(entries, *entry)
	}

	sortEntries(entries, opts.SortBy, opts.SortOrder == SortDesc)

	total := len(entries)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)
	page := entries[start:end]
	for i := range page {
		if !page[i].IsDirectory() {
			page[i].URL = ws.downloadURL(ctx, ws.ref(vpath.Key(ws.folder, append(slices.Clip(page[i].Path), page[i].Name))))
		}
	}

	return &domain.Listing{Path: vpath.Join(segs), Entries: page, Total: total}, nil
}

// sortEntries orders directories before files and each group by key.
// Ties keep their name order.
func sortEntries(entries []domain.VirtualEntry, by string, desc bool) {
	slices.SortStableFunc(entries, func(a, b domain.VirtualEntry) int {
		if a.IsDirectory() != b.IsDirectory() {
			if a.IsDirectory() {
				return -1
			}
			return 1
		}
		var c int
		switch by {
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		case SortByModified:
			c = a.LastModified.Compare(b.LastModified)
		default:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if desc {
			c = -c
		}
		return c
	})
}

// Search yields every file and directory below searchPath whose name
// contains query, case-insensitively. The sequence pages through the store
// lazily; re-ranging it re-issues the listing.
func (ws *Workspace) Search(ctx context.Context, query, searchPath string) iter.Seq2[domain.VirtualEntry, error] {
	return func(yield func(domain.VirtualEntry, error) bool) {
		root, err := vpath.Normalize(searchPath)
		if err != nil {
			yield(domain.VirtualEntry{}, err)
			return
		}
		needle := strings.ToLower(query)
		matches := func(name string) bool { return strings.Contains(strings.ToLower(name), needle) }
		seenDirs := make(map[string]bool)

		for obj, err := range vpath.Walk(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, root)) {
			if err != nil {
				yield(domain.VirtualEntry{}, storeError("search", err))
				return
			}
			segs, ok := vpath.Relative(ws.folder, obj.Key)
			if !ok || len(segs) <= len(root) || strings.HasSuffix(obj.Key, vpath.Delimiter) {
				continue
			}
			// directories between the search root and the object
			for depth := len(root) + 1; depth < len(segs); depth++ {
				dir := vpath.Join(segs[:depth])
				if seenDirs[dir] {
					continue
				}
				seenDirs[dir] = true
				if matches(segs[depth-1]) && !yield(*ws.dirEntry(segs[:depth], time.Time{}), nil) {
					return
				}
			}
			name := segs[len(segs)-1]
			if name == vpath.MarkerName || !matches(name) {
				continue
			}
			entry := ws.fileEntry(segs, &obj)
			entry.URL = ws.downloadURL(ctx, ws.ref(obj.Key))
			if !yield(*entry, nil) {
				return
			}
		}
	}
}
