package service

import (
	"context"
	"fmt"
	"time"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"
	"polysynergy/file-manager/internal/vpath"
)

// Delete removes a file, or with isDirectory a directory and everything
// below it. Keys that vanish concurrently are not an error; a path with
// nothing behind it is NotFound.
func (ws *Workspace) Delete(ctx context.Context, path string, isDirectory bool) error {
	segs, err := vpath.Normalize(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return domain.InvalidPathf("the %s root cannot be deleted", ws.folder)
	}
	if isDirectory {
		return ws.deleteDirectory(ctx, segs)
	}

	ref := ws.ref(vpath.Key(ws.folder, segs))
	if _, err := ws.fm.store.Head(ctx, ref); err != nil {
		if isStoreNotFound(err) {
			return domain.NotFoundf("file %s does not exist", vpath.Join(segs))
		}
		return storeError("delete", err)
	}
	if err := ws.fm.store.Delete(ctx, ref); err != nil {
		return storeError("delete", err)
	}
	ws.log.Info().Str("key", ref.Key).Msg("file deleted")
	return nil
}

func (ws *Workspace) deleteDirectory(ctx context.Context, segs []string) error {
	prefix := vpath.DirPrefix(ws.folder, segs)
	deleted := 0
	for keys, err := range vpath.KeyPages(ctx, ws.fm.store, ws.bucket, prefix) {
		if err != nil {
			return storeError("delete directory", err)
		}
		if err := ws.fm.store.DeleteMany(ctx, ws.bucket, keys); err != nil {
			ws.log.Error().Err(err).Str("prefix", prefix).Int("deleted", deleted).Msg("directory delete interrupted")
			return storeError("delete directory", err)
		}
		deleted += len(keys)
	}
	if deleted == 0 {
		return domain.NotFoundf("directory %s does not exist", vpath.Join(segs))
	}
	ws.log.Info().Str("prefix", prefix).Int("objects", deleted).Msg("directory deleted")
	return nil
}

// BatchDelete deletes each path as a file, or as a directory when no file
// exists there. Every path gets its own outcome.
func (ws *Workspace) BatchDelete(ctx context.Context, paths []string) (*domain.BatchResult, error) {
	if len(paths) > ws.fm.opts.MaxBatchDelete {
		return nil, domain.NewDomainError(domain.ErrCodeBatchLimitExceeded,
			fmt.Sprintf("%d paths submitted, the limit is %d", len(paths), ws.fm.opts.MaxBatchDelete), nil)
	}
	result := &domain.BatchResult{Items: make([]domain.BatchItem, 0, len(paths))}
	for _, p := range paths {
		err := ws.Delete(ctx, p, false)
		if domain.IsNotFound(err) {
			err = ws.Delete(ctx, p, true)
		}
		if err != nil {
			result.Fail(p, err)
			continue
		}
		result.Succeed(p, nil)
	}
	return result, nil
}

// CreateDirectory makes name a directory under parentPath. A marker object is
// written only when nothing exists below the new prefix yet.
func (ws *Workspace) CreateDirectory(ctx context.Context, name, parentPath string) (*domain.VirtualEntry, error) {
	if err := vpath.ValidateName(name); err != nil {
		return nil, err
	}
	parent, err := vpath.Normalize(parentPath)
	if err != nil {
		return nil, err
	}
	segs := append(append([]string{}, parent...), name)

	_, err = ws.fm.store.Head(ctx, ws.ref(vpath.Key(ws.folder, segs)))
	switch {
	case err == nil:
		return nil, domain.Conflictf("a file named %q already exists", vpath.Join(segs))
	case !isStoreNotFound(err):
		return nil, storeError("create directory", err)
	}

	exists, err := vpath.DirExists(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, segs))
	if err != nil {
		return nil, storeError("create directory", err)
	}
	if exists {
		return ws.dirEntry(segs, time.Time{}), nil
	}

	if err := ws.fm.ensureBucket(ctx, ws.bucket); err != nil {
		return nil, err
	}
	marker := ws.ref(vpath.MarkerKey(ws.folder, segs))
	attrs, err := ws.fm.store.Put(ctx, marker, nil, storage.PutOptions{ContentType: vpath.MarkerContentType})
	if err != nil {
		return nil, storeError("create directory", err)
	}
	ws.log.Info().Str("key", marker.Key).Msg("directory created")
	return ws.dirEntry(segs, attrs.LastModified), nil
}
