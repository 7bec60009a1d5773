package vpath

import (
	"context"
	"errors"
	"iter"
	"sort"
	"strings"
	"time"

	"polysynergy/file-manager/internal/storage"
)

// Child is one immediate child of a directory prefix.
type Child struct {
	Name        string
	IsDir       bool
	Key         string // object key for files, prefix with trailing delimiter for directories
	Size        int64
	ContentType string
	ETag        string
	Modified    time.Time
}

// ListChildren groups the keys under prefix on the next delimiter and
// returns the immediate children ordered by name. exists reports whether
// anything at all (markers included) lives under the prefix.
func ListChildren(ctx context.Context, store storage.ObjectStore, bucket, prefix string) (children []Child, exists bool, err error) {
	seenDirs := make(map[string]bool)
	in := storage.ListInput{Prefix: prefix, Delimiter: Delimiter, MaxKeys: storage.MaxKeysPerRequest}
	for {
		page, err := list(ctx, store, bucket, in)
		if err != nil {
			return nil, false, err
		}
		if len(page.Objects) > 0 || len(page.CommonPrefixes) > 0 {
			exists = true
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(cp[len(prefix):], Delimiter)
			if name == "" || seenDirs[name] {
				continue
			}
			seenDirs[name] = true
			children = append(children, Child{Name: name, IsDir: true, Key: cp})
		}
		for _, obj := range page.Objects {
			name := obj.Key[len(prefix):]
			if name == "" || name == MarkerName {
				continue
			}
			children = append(children, Child{
				Name:        name,
				Key:         obj.Key,
				Size:        obj.Size,
				ContentType: obj.ContentType,
				ETag:        obj.ETag,
				Modified:    obj.LastModified,
			})
		}
		if !page.IsTruncated || page.NextContinuationToken == "" {
			break
		}
		in.ContinuationToken = page.NextContinuationToken
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, exists, nil
}

// Walk yields every object below prefix, markers included, paging through
// the store lazily. Iteration stops at the first error.
func Walk(ctx context.Context, store storage.ObjectStore, bucket, prefix string) iter.Seq2[storage.ObjectAttrs, error] {
	return func(yield func(storage.ObjectAttrs, error) bool) {
		in := storage.ListInput{Prefix: prefix, MaxKeys: storage.MaxKeysPerRequest}
		for {
			page, err := list(ctx, store, bucket, in)
			if err != nil {
				yield(storage.ObjectAttrs{}, err)
				return
			}
			for _, obj := range page.Objects {
				if !yield(obj, nil) {
					return
				}
			}
			if !page.IsTruncated || page.NextContinuationToken == "" {
				return
			}
			in.ContinuationToken = page.NextContinuationToken
		}
	}
}

// KeyPages yields the keys below prefix in batches of at most
// storage.MaxKeysPerRequest, one batch per listed page.
func KeyPages(ctx context.Context, store storage.ObjectStore, bucket, prefix string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		in := storage.ListInput{Prefix: prefix, MaxKeys: storage.MaxKeysPerRequest}
		for {
			page, err := list(ctx, store, bucket, in)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page.Objects) > 0 {
				keys := make([]string, len(page.Objects))
				for i, obj := range page.Objects {
					keys[i] = obj.Key
				}
				if !yield(keys, nil) {
					return
				}
			}
			if !page.IsTruncated || page.NextContinuationToken == "" {
				return
			}
			in.ContinuationToken = page.NextContinuationToken
		}
	}
}

// DirExists reports whether at least one object lies under prefix.
func DirExists(ctx context.Context, store storage.ObjectStore, bucket, prefix string) (bool, error) {
	page, err := list(ctx, store, bucket, storage.ListInput{Prefix: prefix, MaxKeys: 1})
	if err != nil {
		return false, err
	}
	return len(page.Objects) > 0, nil
}

// list reads a missing bucket as an empty namespace.
func list(ctx context.Context, store storage.ObjectStore, bucket string, in storage.ListInput) (*storage.ListPage, error) {
	page, err := store.List(ctx, bucket, in)
	if errors.Is(err, storage.ErrBucketNotFound) {
		return &storage.ListPage{}, nil
	}
	return page, err
}
