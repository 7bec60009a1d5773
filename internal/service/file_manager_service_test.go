package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = domain.TenantScope{
	TenantID:  "3f1c2a9e-7b8d-4e5f-9a0b-1c2d3e4f5a6b",
	ProjectID: "project-0001-alpha",
}

func newTestManager(t *testing.T, opts FileManagerOptions) (*FileManager, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewFileManager(store, opts, zerolog.Nop()), store
}

func openWorkspace(t *testing.T, fm *FileManager, opts WorkspaceOptions) (context.Context, *Workspace) {
	t.Helper()
	ctx := domain.WithTenant(context.Background(), testScope)
	ws, err := fm.Open(ctx, testScope, opts)
	require.NoError(t, err)
	return ctx, ws
}

func upload(t *testing.T, ctx context.Context, ws *Workspace, path, body string) *domain.VirtualEntry {
	t.Helper()
	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i], path[i+1:]
	}
	entry, err := ws.Upload(ctx, UploadRequest{Filename: name, Content: []byte(body), FolderPath: dir, ContentType: "text/plain"})
	require.NoError(t, err)
	return entry
}

func names(entries []domain.VirtualEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestOpenRejectsForeignScopeWithoutStoreCalls(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{AutoCreateBuckets: true})

	other := domain.WithTenant(context.Background(), domain.TenantScope{TenantID: "intruder-tenant", ProjectID: testScope.ProjectID})
	_, err := fm.Open(other, testScope, WorkspaceOptions{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = fm.Open(context.Background(), testScope, WorkspaceOptions{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	sameTenantOtherProject := domain.WithTenant(context.Background(), domain.TenantScope{TenantID: testScope.TenantID, ProjectID: "another-project"})
	_, err = fm.Open(sameTenantOtherProject, testScope, WorkspaceOptions{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	assert.Zero(t, store.Calls())
}

func TestOpenValidatesScopeAndFolder(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx := domain.WithTenant(context.Background(), testScope)

	_, err := fm.Open(ctx, domain.TenantScope{TenantID: "", ProjectID: "p"}, WorkspaceOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)

	_, err = fm.Open(ctx, testScope, WorkspaceOptions{Folder: "secrets"})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	ws, err := fm.Open(ctx, testScope, WorkspaceOptions{Folder: domain.FolderGenerated})
	require.NoError(t, err)
	assert.Equal(t, domain.FolderGenerated, ws.Folder())
	assert.Regexp(t, `^polysynergy-[0-9a-f]{8}-[0-9a-f]{8}-media$`, ws.Bucket())
}

func TestUploadMetadataRoundTrip(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{AutoCreateBuckets: true})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	body := []byte("%PDF-1.4 quarterly numbers")
	entry, err := ws.Upload(ctx, UploadRequest{Filename: "report.pdf", Content: body, FolderPath: "documents"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", entry.ContentType)
	assert.Equal(t, []string{"documents"}, entry.Path)
	assert.Contains(t, entry.URL, ws.Bucket())

	meta, err := ws.Metadata(ctx, "documents/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.Size)
	assert.Equal(t, entry.ContentType, meta.ContentType)
	assert.Equal(t, domain.EntryFile, meta.Type)
	assert.False(t, meta.IsPublic)

	dir, err := ws.Metadata(ctx, "documents")
	require.NoError(t, err)
	assert.True(t, dir.IsDirectory())

	_, err = ws.Metadata(ctx, "documents/missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadContentTypeAndVisibility(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{AutoCreateBuckets: true})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	entry, err := ws.Upload(ctx, UploadRequest{Filename: "logo", Content: png, Public: true})
	require.NoError(t, err)
	assert.Equal(t, "image/png", entry.ContentType)
	assert.True(t, entry.IsPublic)

	attrs, err := store.Head(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/logo"})
	require.NoError(t, err)
	assert.Equal(t, string(storage.ACLPublicRead), attrs.Metadata["x-acl"])

	meta, err := ws.Metadata(ctx, "logo")
	require.NoError(t, err)
	assert.True(t, meta.IsPublic)

	entry, err = ws.Upload(ctx, UploadRequest{Filename: "blob.bin7", Content: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", entry.ContentType)
}

func TestUploadLimitsAndValidation(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{MaxUploadBytes: 10, MaxBatchUpload: 2})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	_, err := ws.Upload(ctx, UploadRequest{Filename: "big.txt", Content: make([]byte, 11)})
	assert.ErrorIs(t, err, domain.ErrSizeLimitExceeded)
	assert.Zero(t, store.Calls())

	for _, name := range []string{"", "..", "a/b", ".keep"} {
		_, err = ws.Upload(ctx, UploadRequest{Filename: name, Content: []byte("x")})
		assert.ErrorIs(t, err, domain.ErrInvalidPath, name)
	}

	_, err = ws.UploadMultiple(ctx, make([]UploadRequest, 3))
	assert.ErrorIs(t, err, domain.ErrBatchLimitExceeded)
}

func TestUploadRejectsNameOfExistingDirectory(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "docs/a.txt", "a")

	_, err := ws.Upload(ctx, UploadRequest{Filename: "docs", Content: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUploadMultipleContinuesOnError(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	result, err := ws.UploadMultiple(ctx, []UploadRequest{
		{Filename: "one.txt", Content: []byte("1")},
		{Filename: "../escape.txt", Content: []byte("2")},
		{Filename: "three.txt", Content: []byte("3")},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, 2, result.Succeeded())
	assert.Equal(t, domain.OutcomeError, result.Items[1].Outcome)
	assert.Equal(t, domain.ErrCodeInvalidPath, result.Items[1].ErrorKind)
	assert.NotNil(t, result.Items[2].Entry)
}

func TestDeleteTwiceLeavesSiblings(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "documents/a.txt", "a")
	upload(t, ctx, ws, "documents/b.txt", "b")

	require.NoError(t, ws.Delete(ctx, "documents/a.txt", false))
	assert.ErrorIs(t, ws.Delete(ctx, "documents/a.txt", false), domain.ErrNotFound)

	listing, err := ws.List(ctx, ListOptions{Path: "documents"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names(listing.Entries))

	assert.ErrorIs(t, ws.Delete(ctx, "/", true), domain.ErrInvalidPath)
}

func TestDeleteDirectoryAcrossPages(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	for i := range 1500 {
		_, err := store.Put(ctx, storage.Ref{Bucket: ws.Bucket(), Key: fmt.Sprintf("files/bulk/%04d.txt", i)}, []byte("x"), storage.PutOptions{})
		require.NoError(t, err)
	}
	upload(t, ctx, ws, "bulkhead.txt", "keep me")

	require.NoError(t, ws.Delete(ctx, "bulk", true))
	assert.ErrorIs(t, ws.Delete(ctx, "bulk", true), domain.ErrNotFound)

	listing, err := ws.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bulkhead.txt"}, names(listing.Entries))
}

func TestDirectoryLifecycle(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{AutoCreateBuckets: true})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "documents/readme.txt", "hi")

	dir, err := ws.CreateDirectory(ctx, "reports", "documents")
	require.NoError(t, err)
	assert.True(t, dir.IsDirectory())
	assert.Equal(t, []string{"documents"}, dir.Path)

	listing, err := ws.List(ctx, ListOptions{Path: "documents"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reports", "readme.txt"}, names(listing.Entries))

	inner, err := ws.List(ctx, ListOptions{Path: "documents/reports"})
	require.NoError(t, err)
	assert.Empty(t, inner.Entries)
	assert.Zero(t, inner.Total)

	// idempotent: the marker already implies the directory
	_, err = ws.CreateDirectory(ctx, "reports", "documents")
	require.NoError(t, err)
	n := 0
	for _, err := range ws.Search(ctx, ".keep", "") {
		require.NoError(t, err)
		n++
	}
	assert.Zero(t, n, "markers are never surfaced")

	require.NoError(t, ws.Delete(ctx, "documents/reports", true))
	listing, err = ws.List(ctx, ListOptions{Path: "documents"})
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.txt"}, names(listing.Entries))

	_, err = ws.List(ctx, ListOptions{Path: "documents/reports"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Head(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/documents/reports/.keep"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestCreateDirectoryConflictsAndImpliedDirectories(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "notes", "a file")
	upload(t, ctx, ws, "photos/2024/cat.png", "meow")

	_, err := ws.CreateDirectory(ctx, "notes", "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = ws.CreateDirectory(ctx, "photos", "")
	require.NoError(t, err)
	_, err = store.Head(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/photos/.keep"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound, "no marker when children already exist")

	_, err = ws.CreateDirectory(ctx, "a/b", "")
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}

func TestListingDoesNotReportUnifiedVisibility(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	_, err := ws.Upload(ctx, UploadRequest{Filename: "pub.txt", Content: []byte("x"), Public: true})
	require.NoError(t, err)

	meta, err := ws.Metadata(ctx, "pub.txt")
	require.NoError(t, err)
	assert.True(t, meta.IsPublic)

	listing, err := ws.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.False(t, listing.Entries[0].IsPublic)
}

func TestMoveFile(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "a/b.txt", "payload")
	upload(t, ctx, ws, "a/other.txt", "stay")
	before, err := ws.Metadata(ctx, "a/b.txt")
	require.NoError(t, err)

	report, err := ws.Move(ctx, "a/b.txt", "c/b.txt", MoveOptions{})
	require.NoError(t, err)
	assert.False(t, report.IsDirectory)
	assert.Equal(t, []string{"c/b.txt"}, report.Copied)
	assert.Equal(t, 1, report.Deleted)

	listing, err := ws.List(ctx, ListOptions{Path: "a"})
	require.NoError(t, err)
	assert.NotContains(t, names(listing.Entries), "b.txt")

	listing, err = ws.List(ctx, ListOptions{Path: "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"b.txt"}, names(listing.Entries))
	assert.Equal(t, before.Size, listing.Entries[0].Size)
	assert.Equal(t, before.ContentType, listing.Entries[0].ContentType)
}

func TestMoveConflictPolicy(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "src.txt", "new content")
	upload(t, ctx, ws, "dst.txt", "old")

	_, err := ws.Move(ctx, "src.txt", "dst.txt", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = ws.Metadata(ctx, "src.txt")
	require.NoError(t, err, "source untouched after a conflict")

	_, err = ws.Move(ctx, "src.txt", "dst.txt", MoveOptions{Overwrite: true})
	require.NoError(t, err)
	meta, err := ws.Metadata(ctx, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("new content")), meta.Size)

	_, err = ws.Move(ctx, "dst.txt", "dst.txt", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
	_, err = ws.Move(ctx, "ghost.txt", "x.txt", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveDirectory(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "docs/a.txt", "a")
	upload(t, ctx, ws, "docs/deep/b.txt", "b")
	_, err := ws.CreateDirectory(ctx, "empty", "docs")
	require.NoError(t, err)

	report, err := ws.Move(ctx, "docs", "archive/docs", MoveOptions{})
	require.NoError(t, err)
	assert.True(t, report.IsDirectory)
	assert.Len(t, report.Copied, 3)

	_, err = ws.List(ctx, ListOptions{Path: "docs"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listing, err := ws.List(ctx, ListOptions{Path: "archive/docs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"deep", "empty", "a.txt"}, names(listing.Entries))

	_, err = ws.Move(ctx, "archive", "archive/inner", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}

func TestMoveAbortsBeforeDeleteAndResumes(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "src/1.txt", "one")
	upload(t, ctx, ws, "src/2.txt", "two")
	upload(t, ctx, ws, "src/3.txt", "three")

	store.SetFault(func(op string, ref storage.Ref) error {
		if op == "copy" && ref.Key == "files/dst/2.txt" {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	_, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	var moveErr *MoveError
	require.ErrorAs(t, err, &moveErr)
	assert.Equal(t, "copy", moveErr.Phase)
	assert.Equal(t, "dst/2.txt", moveErr.Failed)
	assert.Equal(t, []string{"dst/1.txt"}, moveErr.Report.Written())
	assert.ErrorIs(t, err, domain.ErrTransientStore)

	listing, err := ws.List(ctx, ListOptions{Path: "src"})
	require.NoError(t, err)
	assert.Len(t, listing.Entries, 3, "source intact")

	store.SetFault(nil)
	report, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dst/1.txt"}, report.Skipped)
	assert.Equal(t, []string{"dst/2.txt", "dst/3.txt"}, report.Copied)
	assert.Equal(t, 3, report.Deleted)
}

func TestMovePreservesPublicACL(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	_, err := ws.Upload(ctx, UploadRequest{Filename: "pub.png", Content: []byte("img"), Public: true})
	require.NoError(t, err)

	_, err = ws.Move(ctx, "pub.png", "shared/pub.png", MoveOptions{})
	require.NoError(t, err)
	attrs, err := store.Head(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/shared/pub.png"})
	require.NoError(t, err)
	assert.Equal(t, string(storage.ACLPublicRead), attrs.Metadata["x-acl"])
}

func TestMoveOntoExistingDirectoryConflicts(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "src/a.txt", "a")
	upload(t, ctx, ws, "dst/keep.txt", "keep")
	_, err := ws.CreateDirectory(ctx, "empty", "")
	require.NoError(t, err)

	_, err = ws.Move(ctx, "src", "dst", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = ws.Move(ctx, "src", "empty", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict)

	listing, err := ws.List(ctx, ListOptions{Path: "dst"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, names(listing.Entries))
	listing, err = ws.List(ctx, ListOptions{Path: "src"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names(listing.Entries), "source untouched after a conflict")

	report, err := ws.Move(ctx, "src", "dst", MoveOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"dst/a.txt"}, report.Copied)
	listing, err = ws.List(ctx, ListOptions{Path: "dst"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "keep.txt"}, names(listing.Entries))
}

func TestMoveOntoIdenticalUnrelatedFileConflicts(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "a.txt", "same")
	upload(t, ctx, ws, "b.txt", "same")

	_, err := ws.Move(ctx, "a.txt", "b.txt", MoveOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = ws.Metadata(ctx, "a.txt")
	assert.NoError(t, err)
}

func TestMoveVerifyFailureKeepsSourceAndRemovesCopy(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "src/1.txt", "one")
	upload(t, ctx, ws, "src/2.txt", "two")

	store.SetCopyHook(func(dst storage.Ref, body []byte) []byte {
		if dst.Key == "files/dst/2.txt" {
			return body[:1]
		}
		return body
	})
	_, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	var moveErr *MoveError
	require.ErrorAs(t, err, &moveErr)
	assert.Equal(t, "verify", moveErr.Phase)
	assert.Equal(t, "dst/2.txt", moveErr.Failed)
	assert.Equal(t, []string{"dst/1.txt"}, moveErr.Report.Written())
	assert.ErrorIs(t, err, domain.ErrTransientStore)

	_, err = store.Head(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/dst/2.txt"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound, "unverified copy removed")
	listing, err := ws.List(ctx, ListOptions{Path: "src"})
	require.NoError(t, err)
	assert.Len(t, listing.Entries, 2, "source intact")

	store.SetCopyHook(nil)
	report, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dst/1.txt"}, report.Skipped)
	assert.Equal(t, []string{"dst/2.txt"}, report.Copied)
}

func TestMoveDeleteFailureReportsWrittenKeys(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "src/1.txt", "one")
	upload(t, ctx, ws, "src/2.txt", "two")

	store.SetFault(func(op string, ref storage.Ref) error {
		if op == "delete_many" {
			return errors.New("service unavailable")
		}
		return nil
	})
	_, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	var moveErr *MoveError
	require.ErrorAs(t, err, &moveErr)
	assert.Equal(t, "delete", moveErr.Phase)
	assert.Equal(t, []string{"dst/1.txt", "dst/2.txt"}, moveErr.Report.Written())
	assert.Zero(t, moveErr.Report.Deleted)
	assert.ErrorIs(t, err, domain.ErrTransientStore)

	// One source went away before the retry, its copy stays acceptable.
	store.SetFault(nil)
	require.NoError(t, store.Delete(ctx, storage.Ref{Bucket: ws.Bucket(), Key: "files/src/1.txt"}))

	report, err := ws.Move(ctx, "src", "dst", MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dst/2.txt"}, report.Skipped)
	assert.Empty(t, report.Copied)
	assert.Equal(t, 1, report.Deleted)

	_, err = ws.List(ctx, ListOptions{Path: "src"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	listing, err := ws.List(ctx, ListOptions{Path: "dst"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.txt", "2.txt"}, names(listing.Entries))
}

func TestBatchDeletePartialFailure(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{MaxBatchDelete: 5})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "x", "x")
	upload(t, ctx, ws, "y/inner.txt", "y")

	result, err := ws.BatchDelete(ctx, []string{"x", "y", "missing"})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, 2, result.Succeeded())
	assert.Equal(t, domain.OutcomeSuccess, result.Items[0].Outcome)
	assert.Equal(t, domain.OutcomeSuccess, result.Items[1].Outcome)
	assert.Equal(t, domain.ErrCodeNotFound, result.Items[2].ErrorKind)

	_, err = ws.BatchDelete(ctx, make([]string, 6))
	assert.ErrorIs(t, err, domain.ErrBatchLimitExceeded)
}

func TestListFilterSortPaginate(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	for _, req := range []UploadRequest{
		{Filename: "b.png", Content: []byte("12345"), ContentType: "image/png"},
		{Filename: "A.jpg", Content: []byte("1"), ContentType: "image/jpeg"},
		{Filename: "c.txt", Content: []byte("123"), ContentType: "text/plain"},
		{Filename: "d.zip", Content: []byte("12"), ContentType: "application/zip"},
	} {
		_, err := ws.Upload(ctx, req)
		require.NoError(t, err)
	}
	_, err := ws.CreateDirectory(ctx, "zeta", "")
	require.NoError(t, err)
	_, err = ws.CreateDirectory(ctx, "alpha", "")
	require.NoError(t, err)

	listing, err := ws.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "A.jpg", "b.png", "c.txt", "d.zip"}, names(listing.Entries))
	assert.Equal(t, 6, listing.Total)

	listing, err = ws.List(ctx, ListOptions{SortBy: SortBySize, SortOrder: "DESC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "b.png", "c.txt", "d.zip", "A.jpg"}, names(listing.Entries))

	listing, err = ws.List(ctx, ListOptions{FileType: "image"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "A.jpg", "b.png"}, names(listing.Entries))

	listing, err = ws.List(ctx, ListOptions{FileType: "archive"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "d.zip"}, names(listing.Entries))

	listing, err = ws.List(ctx, ListOptions{Search: "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "A.jpg"}, names(listing.Entries))

	listing, err = ws.List(ctx, ListOptions{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png", "c.txt"}, names(listing.Entries))
	assert.Equal(t, 6, listing.Total)
	assert.NotEmpty(t, listing.Entries[0].URL)

	listing, err = ws.List(ctx, ListOptions{Limit: -5, Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
	assert.Equal(t, 6, listing.Total)
}

func TestSearchIsRecursiveAndLazy(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})
	upload(t, ctx, ws, "Reports/2024/q1-report.txt", "1")
	upload(t, ctx, ws, "reports/old.txt", "2")
	upload(t, ctx, ws, "misc/notes.txt", "3")

	var found []string
	for entry, err := range ws.Search(ctx, "REPORT", "") {
		require.NoError(t, err)
		found = append(found, fmt.Sprintf("%s:%s", entry.Type, entry.FullPath()))
	}
	assert.ElementsMatch(t, []string{
		"directory:Reports",
		"file:Reports/2024/q1-report.txt",
		"directory:reports",
	}, found)

	found = nil
	for entry, err := range ws.Search(ctx, "txt", "misc") {
		require.NoError(t, err)
		found = append(found, entry.FullPath())
	}
	assert.Equal(t, []string{"misc/notes.txt"}, found)

	before := store.Calls()
	for range ws.Search(ctx, "", "") {
		break
	}
	assert.Equal(t, before+1, store.Calls(), "stops after the first page is consumed")

	for _, err := range ws.Search(ctx, "x", "../etc") {
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	}
}

func TestHealthAndStoreErrors(t *testing.T) {
	fm, store := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	assert.ErrorIs(t, ws.Health(ctx), domain.ErrNotFound)
	upload(t, ctx, ws, "a.txt", "a")
	before := store.Calls()
	require.NoError(t, ws.Health(ctx))
	assert.Equal(t, before+1, store.Calls())

	store.SetFault(func(op string, _ storage.Ref) error {
		if op == "list" {
			return errors.New("i/o timeout")
		}
		return nil
	})
	_, err := ws.List(ctx, ListOptions{})
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.Equal(t, domain.ErrCodeTransientStoreError, domain.ErrorCode(err))
}

func TestListOfFreshProjectIsEmpty(t *testing.T) {
	fm, _ := newTestManager(t, FileManagerOptions{})
	ctx, ws := openWorkspace(t, fm, WorkspaceOptions{})

	listing, err := ws.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
}

func TestLegacyNamingSplitsBuckets(t *testing.T) {
	scope := domain.TenantScope{TenantID: "tenant42", ProjectID: "proj"}
	store := storage.NewMemoryStorage()
	fm := NewFileManager(store, FileManagerOptions{LegacyNaming: true, AutoCreateBuckets: true}, zerolog.Nop())
	ctx := domain.WithTenant(context.Background(), scope)

	private, err := fm.Open(ctx, scope, WorkspaceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ps-private-files-tenant42", private.Bucket())

	_, err = private.Upload(ctx, UploadRequest{Filename: "poster.png", Content: []byte("png"), Public: true})
	require.NoError(t, err)
	_, err = store.Head(ctx, storage.Ref{Bucket: "ps-public-files-tenant42", Key: "files/poster.png"})
	require.NoError(t, err)

	public, err := fm.Open(ctx, scope, WorkspaceOptions{Public: true})
	require.NoError(t, err)
	listing, err := public.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.True(t, listing.Entries[0].IsPublic)

	listing, err = private.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
}
