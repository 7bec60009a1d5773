package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"
	"polysynergy/file-manager/internal/vpath"
)

// MoveOptions controls collisions at the destination.
type MoveOptions struct {
	Overwrite bool
}

// MoveReport describes what a move did. Paths are relative to the partition.
type MoveReport struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	IsDirectory bool     `json:"isDirectory"`
	Copied      []string `json:"copied"`
	Skipped     []string `json:"skipped"` // already copied by an earlier attempt
	Deleted     int      `json:"deleted"`
}

// Written lists every destination path that holds a verified copy.
func (r *MoveReport) Written() []string {
	return slices.Concat(r.Skipped, r.Copied)
}

// MoveError is returned when a move stops part-way. The source is intact
// unless Phase is "delete"; re-issuing the same move resumes it.
type MoveError struct {
	Report *MoveReport
	Phase  string // "copy", "verify" or "delete"
	Failed string // destination path (copy, verify) being processed
	Err    error
}

func (e *MoveError) Error() string {
	written := len(e.Report.Written())
	if e.Failed != "" {
		return fmt.Sprintf("move %s -> %s stopped at %s of %s (%d destination paths written): %v",
			e.Report.Source, e.Report.Destination, e.Phase, e.Failed, written, e.Err)
	}
	return fmt.Sprintf("move %s -> %s stopped in %s phase (%d destination paths written): %v",
		e.Report.Source, e.Report.Destination, e.Phase, written, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

type moveStep struct {
	srcKey  string
	dstKey  string
	dstPath string
	src     storage.ObjectAttrs
}

// Move relocates a file or directory by copying every object, verifying each
// copy, and only then deleting the sources. A failure before the delete
// phase leaves the source untouched. Every copy is tagged with its source
// key, so objects left at the destination by an earlier attempt of the same
// move are recognised and skipped on retry. Anything else already at the
// destination, including an existing directory, is a Conflict unless
// Overwrite is set, in which case the two are merged.
func (ws *Workspace) Move(ctx context.Context, src, dst string, opts MoveOptions) (*MoveReport, error) {
	srcSegs, err := vpath.Normalize(src)
	if err != nil {
		return nil, err
	}
	dstSegs, err := vpath.Normalize(dst)
	if err != nil {
		return nil, err
	}
	if len(srcSegs) == 0 || len(dstSegs) == 0 {
		return nil, domain.InvalidPathf("move needs a source and a destination below the root")
	}
	if slices.Equal(srcSegs, dstSegs) {
		return nil, domain.InvalidPathf("source and destination are both %s", vpath.Join(srcSegs))
	}

	steps, isDir, err := ws.movePlan(ctx, srcSegs, dstSegs)
	if err != nil {
		return nil, err
	}
	report := &MoveReport{
		Source:      vpath.Join(srcSegs),
		Destination: vpath.Join(dstSegs),
		IsDirectory: isDir,
		Copied:      []string{},
		Skipped:     []string{},
	}

	pending, err := ws.moveCollisions(ctx, steps, isDir, srcSegs, dstSegs, opts, report)
	if err != nil {
		return nil, err
	}

	for _, step := range pending {
		if phase, err := ws.copyVerified(ctx, step); err != nil {
			ws.log.Error().Err(err).Str("source", step.srcKey).Str("destination", step.dstKey).
				Int("written", len(report.Written())).Msg("move aborted before deleting sources")
			return nil, &MoveError{Report: report, Phase: phase, Failed: step.dstPath, Err: err}
		}
		report.Copied = append(report.Copied, step.dstPath)
	}

	srcKeys := make([]string, len(steps))
	for i, step := range steps {
		srcKeys[i] = step.srcKey
	}
	for chunk := range slices.Chunk(srcKeys, storage.MaxKeysPerRequest) {
		if err := ws.fm.store.DeleteMany(ctx, ws.bucket, chunk); err != nil {
			return nil, &MoveError{Report: report, Phase: "delete", Err: storeError("move", err)}
		}
		report.Deleted += len(chunk)
	}

	ws.log.Info().Str("source", report.Source).Str("destination", report.Destination).
		Int("copied", len(report.Copied)).Int("skipped", len(report.Skipped)).Msg("entry moved")
	return report, nil
}

// movePlan resolves the source into copy steps. Sources are files when an
// object sits at the exact key, directories when anything lies below it.
func (ws *Workspace) movePlan(ctx context.Context, srcSegs, dstSegs []string) ([]moveStep, bool, error) {
	srcKey := vpath.Key(ws.folder, srcSegs)
	dstKey := vpath.Key(ws.folder, dstSegs)

	attrs, err := ws.fm.store.Head(ctx, ws.ref(srcKey))
	if err == nil {
		dirAtDst, err := vpath.DirExists(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, dstSegs))
		if err != nil {
			return nil, false, storeError("move", err)
		}
		if dirAtDst {
			return nil, false, domain.Conflictf("a directory named %q already exists", vpath.Join(dstSegs))
		}
		return []moveStep{{srcKey: srcKey, dstKey: dstKey, dstPath: vpath.Join(dstSegs), src: *attrs}}, false, nil
	}
	if !isStoreNotFound(err) {
		return nil, false, storeError("move", err)
	}

	if vpath.Contains(srcSegs, dstSegs) {
		return nil, false, domain.InvalidPathf("cannot move %s into itself", vpath.Join(srcSegs))
	}
	if _, err := ws.fm.store.Head(ctx, ws.ref(dstKey)); err == nil {
		return nil, false, domain.Conflictf("a file named %q already exists", vpath.Join(dstSegs))
	} else if !isStoreNotFound(err) {
		return nil, false, storeError("move", err)
	}

	srcPrefix := vpath.DirPrefix(ws.folder, srcSegs)
	dstPrefix := vpath.DirPrefix(ws.folder, dstSegs)
	var steps []moveStep
	for obj, err := range vpath.Walk(ctx, ws.fm.store, ws.bucket, srcPrefix) {
		if err != nil {
			return nil, false, storeError("move", err)
		}
		rel := strings.TrimPrefix(obj.Key, srcPrefix)
		steps = append(steps, moveStep{
			srcKey:  obj.Key,
			dstKey:  dstPrefix + rel,
			dstPath: vpath.Join(dstSegs) + vpath.Delimiter + rel,
			src:     obj,
		})
	}
	if len(steps) == 0 {
		return nil, false, domain.NotFoundf("%s does not exist", vpath.Join(srcSegs))
	}
	return steps, true, nil
}

// moveCollisions inspects everything already at the destination before
// anything is written and returns the steps that still need a copy.
func (ws *Workspace) moveCollisions(ctx context.Context, steps []moveStep, isDir bool, srcSegs, dstSegs []string, opts MoveOptions, report *MoveReport) ([]moveStep, error) {
	existing, err := ws.destinationObjects(ctx, isDir, dstSegs)
	if err != nil {
		return nil, err
	}

	var pending []moveStep
	for _, step := range steps {
		attrs, ok := existing[step.dstKey]
		if !ok {
			pending = append(pending, step)
			continue
		}
		delete(existing, step.dstKey)
		full, err := ws.withMetadata(ctx, attrs)
		if err != nil {
			return nil, err
		}
		switch {
		case isMoveCopy(step, full):
			report.Skipped = append(report.Skipped, step.dstPath)
		case !opts.Overwrite:
			return nil, domain.Conflictf("%s already exists", step.dstPath)
		default:
			pending = append(pending, step)
		}
	}
	if opts.Overwrite {
		return pending, nil
	}

	// What remains was not planned. It is only acceptable when an earlier
	// attempt copied it from a source the delete phase already removed.
	srcPrefix := vpath.DirPrefix(ws.folder, srcSegs)
	dstPrefix := vpath.DirPrefix(ws.folder, dstSegs)
	for _, key := range slices.Sorted(maps.Keys(existing)) {
		full, err := ws.withMetadata(ctx, existing[key])
		if err != nil {
			return nil, err
		}
		origin, tagged := full.Metadata[metaMoveSource]
		if !tagged || !strings.HasPrefix(origin, srcPrefix) || dstPrefix+strings.TrimPrefix(origin, srcPrefix) != key {
			return nil, domain.Conflictf("%s already exists", report.Destination)
		}
	}
	return pending, nil
}

// destinationObjects returns the object at the destination key for a file
// move, or every object below the destination prefix for a directory move.
func (ws *Workspace) destinationObjects(ctx context.Context, isDir bool, dstSegs []string) (map[string]storage.ObjectAttrs, error) {
	existing := make(map[string]storage.ObjectAttrs)
	if !isDir {
		key := vpath.Key(ws.folder, dstSegs)
		attrs, err := ws.fm.store.Head(ctx, ws.ref(key))
		switch {
		case err == nil:
			existing[key] = *attrs
		case !isStoreNotFound(err):
			return nil, storeError("move", err)
		}
		return existing, nil
	}
	for obj, err := range vpath.Walk(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, dstSegs)) {
		if err != nil {
			return nil, storeError("move", err)
		}
		existing[obj.Key] = obj
	}
	return existing, nil
}

// withMetadata heads an object when its attributes came from a listing,
// which carries no user metadata.
func (ws *Workspace) withMetadata(ctx context.Context, attrs storage.ObjectAttrs) (storage.ObjectAttrs, error) {
	if attrs.Metadata != nil {
		return attrs, nil
	}
	full, err := ws.fm.store.Head(ctx, ws.ref(attrs.Key))
	if err != nil {
		return storage.ObjectAttrs{}, storeError("move", err)
	}
	return *full, nil
}

// copyVerified copies one object and checks the result against the source.
// It returns the phase that failed. A copy that does not verify is removed
// again so a retry starts clean.
func (ws *Workspace) copyVerified(ctx context.Context, step moveStep) (string, error) {
	opts, err := ws.copyOptions(ctx, step)
	if err != nil {
		return "copy", err
	}
	if _, err := ws.fm.store.Copy(ctx, ws.ref(step.srcKey), ws.ref(step.dstKey), opts); err != nil {
		return "copy", storeError("move", err)
	}
	copied, err := ws.fm.store.Head(ctx, ws.ref(step.dstKey))
	if err != nil {
		return "verify", storeError("move", err)
	}
	if !verifiedCopy(step.src, copied) {
		if err := ws.fm.store.Delete(ctx, ws.ref(step.dstKey)); err != nil {
			ws.log.Warn().Err(err).Str("key", step.dstKey).Msg("could not remove unverified copy")
		}
		return "verify", domain.NewDomainError(domain.ErrCodeTransientStoreError,
			fmt.Sprintf("copy of %s does not match its source (size %d vs %d)", step.srcKey, copied.Size, step.src.Size), nil)
	}
	return "", nil
}

// copyOptions keeps the source's content type and metadata, tags the copy
// with its source key and re-applies public visibility, which a server-side
// copy drops.
func (ws *Workspace) copyOptions(ctx context.Context, step moveStep) (storage.CopyOptions, error) {
	src := step.src
	if src.Metadata == nil && !vpath.IsMarker(step.srcKey) {
		attrs, err := ws.fm.store.Head(ctx, ws.ref(step.srcKey))
		if err != nil {
			return storage.CopyOptions{}, storeError("move", err)
		}
		src = *attrs
	}
	metadata := maps.Clone(src.Metadata)
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata[metaMoveSource] = step.srcKey

	acl := storage.ACLPrivate
	if !ws.fm.opts.LegacyNaming && metadata[metaVisibility] == "public" {
		acl = storage.ACLPublicRead
	}
	return storage.CopyOptions{ACL: acl, ContentType: src.ContentType, Metadata: metadata}, nil
}

// isMoveCopy reports whether dst was written by a move of step's source.
func isMoveCopy(step moveStep, dst storage.ObjectAttrs) bool {
	return dst.Metadata[metaMoveSource] == step.srcKey && verifiedCopy(step.src, &dst)
}

// verifiedCopy compares size and ETag. Multipart ETags (containing "-")
// are not content hashes and are ignored.
func verifiedCopy(src storage.ObjectAttrs, dst *storage.ObjectAttrs) bool {
	if dst == nil || src.Size != dst.Size {
		return false
	}
	if !comparableETag(src.ETag) || !comparableETag(dst.ETag) {
		return true
	}
	return src.ETag == dst.ETag
}

func comparableETag(etag string) bool {
	return etag != "" && !strings.Contains(etag, "-")
}
