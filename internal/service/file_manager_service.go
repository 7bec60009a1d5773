package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"polysynergy/file-manager/internal/config"
	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"
	"polysynergy/file-manager/internal/vpath"

	"github.com/rs/zerolog"
)

// Defaults applied when FileManagerOptions leaves a limit at zero.
const (
	DefaultMaxUploadBytes = 100 * 1024 * 1024
	DefaultMaxBatchUpload = 20
	DefaultMaxBatchDelete = 100
	DefaultDownloadURLTTL = 24 * time.Hour
)

// metaVisibility is the user-metadata key recording the upload's public flag.
const metaVisibility = "visibility"

// metaMoveSource records the key a moved object was copied from.
const metaMoveSource = "move-source"

// FileManagerOptions holds the limits and naming mode of a FileManager.
type FileManagerOptions struct {
	LegacyNaming      bool
	AutoCreateBuckets bool
	MaxUploadBytes    int64
	MaxBatchUpload    int
	MaxBatchDelete    int
	DownloadURLTTL    time.Duration
}

// FileManagerOptionsFromConfig maps the loaded configuration onto options.
func FileManagerOptionsFromConfig(cfg config.Config) FileManagerOptions {
	return FileManagerOptions{
		LegacyNaming:      cfg.Storage.LegacyNaming,
		AutoCreateBuckets: cfg.S3.AutoCreateBuckets,
		MaxUploadBytes:    cfg.Storage.MaxUploadBytes,
		MaxBatchUpload:    cfg.Storage.MaxBatchUpload,
		MaxBatchDelete:    cfg.Storage.MaxBatchDelete,
		DownloadURLTTL:    cfg.Storage.DownloadURLTTL,
	}
}

// FileManager hands out tenant-bound workspaces over one shared store.
type FileManager struct {
	store   storage.ObjectStore
	namer   storage.BucketNamer
	opts    FileManagerOptions
	log     zerolog.Logger
	ensured sync.Map // bucket name -> struct{}
}

// NewFileManager creates a FileManager. The store is shared by every workspace.
func NewFileManager(store storage.ObjectStore, opts FileManagerOptions, log zerolog.Logger) *FileManager {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.MaxBatchUpload <= 0 {
		opts.MaxBatchUpload = DefaultMaxBatchUpload
	}
	if opts.MaxBatchDelete <= 0 {
		opts.MaxBatchDelete = DefaultMaxBatchDelete
	}
	if opts.DownloadURLTTL <= 0 {
		opts.DownloadURLTTL = DefaultDownloadURLTTL
	}
	return &FileManager{
		store: store,
		namer: storage.NewBucketNamer(opts.LegacyNaming),
		opts:  opts,
		log:   log.With().Str("component", "file_manager").Logger(),
	}
}

// WorkspaceOptions selects the partition a workspace operates on.
type WorkspaceOptions struct {
	Folder domain.FolderType // defaults to files
	Public bool              // legacy naming: read from the public bucket
}

// Workspace is a FileManager bound to one tenant scope, bucket and folder
// partition. It is cheap to create and is meant to live for one request.
type Workspace struct {
	fm     *FileManager
	scope  domain.TenantScope
	folder domain.FolderType
	bucket string
	public bool
	log    zerolog.Logger
}

// Open checks the caller scope carried on ctx against scope and returns a
// workspace for it. A missing or mismatching caller yields PermissionDenied
// before any store call is made.
func (fm *FileManager) Open(ctx context.Context, scope domain.TenantScope, opts WorkspaceOptions) (*Workspace, error) {
	folder := opts.Folder
	if folder == "" {
		folder = domain.FolderFiles
	}
	if !folder.Valid() {
		return nil, domain.InvalidPathf("unknown folder type %q", folder)
	}

	bucket, err := fm.namer.Bucket(scope, opts.Public)
	if err != nil {
		return nil, err
	}
	caller, ok := domain.TenantFromContext(ctx)
	if !ok {
		return nil, domain.ErrPermissionDenied
	}
	callerBucket, err := fm.namer.Bucket(caller, opts.Public)
	if err != nil || callerBucket != bucket {
		fm.log.Warn().Str("tenant_id", scope.TenantID).Str("project_id", scope.ProjectID).
			Str("caller_tenant_id", caller.TenantID).Msg("cross-tenant access rejected")
		return nil, domain.ErrPermissionDenied
	}

	log := fm.log.With().Str("bucket", bucket).Str("folder", string(folder)).
		Str("tenant_id", scope.TenantID).Str("project_id", scope.ProjectID).Logger()
	return &Workspace{
		fm:     fm,
		scope:  scope,
		folder: folder,
		bucket: bucket,
		public: opts.Public,
		log:    log,
	}, nil
}

// Buckets lists every bucket holding objects of scope.
func (fm *FileManager) Buckets(scope domain.TenantScope) ([]string, error) {
	return fm.namer.Buckets(scope)
}

// Bucket is the bucket reads go to.
func (ws *Workspace) Bucket() string { return ws.bucket }

// Folder is the partition the workspace is bound to.
func (ws *Workspace) Folder() domain.FolderType { return ws.folder }

// ensureBucket creates a bucket once per process when auto-creation is on.
func (fm *FileManager) ensureBucket(ctx context.Context, bucket string) error {
	if !fm.opts.AutoCreateBuckets {
		return nil
	}
	if _, ok := fm.ensured.Load(bucket); ok {
		return nil
	}
	if err := fm.store.EnsureBucket(ctx, bucket); err != nil {
		return storeError("ensure bucket", err)
	}
	fm.ensured.Store(bucket, struct{}{})
	return nil
}

// writeTarget returns the bucket and ACL an upload with the given public
// flag goes to. Legacy naming splits buckets, unified naming uses ACLs.
func (ws *Workspace) writeTarget(public bool) (string, storage.ACL, error) {
	if ws.fm.opts.LegacyNaming {
		bucket, err := ws.fm.namer.Bucket(ws.scope, public)
		return bucket, storage.ACLPrivate, err
	}
	if public {
		return ws.bucket, storage.ACLPublicRead, nil
	}
	return ws.bucket, storage.ACLPrivate, nil
}

func (ws *Workspace) ref(key string) storage.Ref {
	return storage.Ref{Bucket: ws.bucket, Key: key}
}

// UploadRequest is a single file to store.
type UploadRequest struct {
	Filename    string
	Content     []byte
	ContentType string // optional; detected when empty
	FolderPath  string // directory inside the partition, "" for the root
	Public      bool
}

// Upload stores one file and returns its entry.
func (ws *Workspace) Upload(ctx context.Context, req UploadRequest) (*domain.VirtualEntry, error) {
	if int64(len(req.Content)) > ws.fm.opts.MaxUploadBytes {
		return nil, domain.NewDomainError(domain.ErrCodeSizeLimitExceeded,
			fmt.Sprintf("%s is %d bytes, the limit is %d", req.Filename, len(req.Content), ws.fm.opts.MaxUploadBytes), nil)
	}
	if err := vpath.ValidateName(req.Filename); err != nil {
		return nil, err
	}
	dir, err := vpath.Normalize(req.FolderPath)
	if err != nil {
		return nil, err
	}
	segs := append(append([]string{}, dir...), req.Filename)

	bucket, acl, err := ws.writeTarget(req.Public)
	if err != nil {
		return nil, err
	}
	if err := ws.fm.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	isDir, err := vpath.DirExists(ctx, ws.fm.store, bucket, vpath.DirPrefix(ws.folder, segs))
	if err != nil {
		return nil, storeError("upload", err)
	}
	if isDir {
		return nil, domain.Conflictf("a directory named %q already exists", vpath.Join(segs))
	}

	contentType := DetectContentType(req.Filename, req.Content, req.ContentType)
	visibility := "private"
	if req.Public {
		visibility = "public"
	}
	ref := storage.Ref{Bucket: bucket, Key: vpath.Key(ws.folder, segs)}
	attrs, err := ws.fm.store.Put(ctx, ref, req.Content, storage.PutOptions{
		ContentType: contentType,
		ACL:         acl,
		Metadata:    map[string]string{metaVisibility: visibility},
	})
	if err != nil {
		ws.log.Error().Err(err).Str("key", ref.Key).Msg("upload failed")
		return nil, storeError("upload", err)
	}
	ws.log.Info().Str("key", ref.Key).Int("size", len(req.Content)).Str("content_type", contentType).Msg("file uploaded")

	entry := &domain.VirtualEntry{
		Path:         append([]string{}, dir...),
		Name:         req.Filename,
		Type:         domain.EntryFile,
		Size:         attrs.Size,
		ContentType:  contentType,
		LastModified: attrs.LastModified,
		IsPublic:     req.Public,
		Folder:       ws.folder,
	}
	entry.URL = ws.downloadURL(ctx, ref)
	return entry, nil
}

// UploadMultiple uploads each request independently; one failure does not
// stop the others.
func (ws *Workspace) UploadMultiple(ctx context.Context, reqs []UploadRequest) (*domain.BatchResult, error) {
	if len(reqs) > ws.fm.opts.MaxBatchUpload {
		return nil, domain.NewDomainError(domain.ErrCodeBatchLimitExceeded,
			fmt.Sprintf("%d files submitted, the limit is %d", len(reqs), ws.fm.opts.MaxBatchUpload), nil)
	}
	result := &domain.BatchResult{Items: make([]domain.BatchItem, 0, len(reqs))}
	for _, req := range reqs {
		entry, err := ws.Upload(ctx, req)
		if err != nil {
			result.Fail(req.Filename, err)
			continue
		}
		result.Succeed(req.Filename, entry)
	}
	return result, nil
}

// Metadata returns the entry at path: a file if an object exists under the
// exact key, otherwise a directory if anything lives below it.
func (ws *Workspace) Metadata(ctx context.Context, path string) (*domain.VirtualEntry, error) {
	segs, err := vpath.Normalize(path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, domain.InvalidPathf("a path is required")
	}
	key := vpath.Key(ws.folder, segs)
	attrs, err := ws.fm.store.Head(ctx, ws.ref(key))
	switch {
	case err == nil:
		entry := ws.fileEntry(segs, attrs)
		entry.URL = ws.downloadURL(ctx, ws.ref(key))
		return entry, nil
	case !isStoreNotFound(err):
		return nil, storeError("metadata", err)
	}

	exists, err := vpath.DirExists(ctx, ws.fm.store, ws.bucket, vpath.DirPrefix(ws.folder, segs))
	if err != nil {
		return nil, storeError("metadata", err)
	}
	if !exists {
		return nil, domain.NotFoundf("%s does not exist", vpath.Join(segs))
	}
	return ws.dirEntry(segs, time.Time{}), nil
}

// Health probes the workspace bucket without touching any object.
func (ws *Workspace) Health(ctx context.Context) error {
	if err := ws.fm.store.HeadBucket(ctx, ws.bucket); err != nil {
		return storeError("health", err)
	}
	return nil
}

func (ws *Workspace) fileEntry(segs []string, attrs *storage.ObjectAttrs) *domain.VirtualEntry {
	name := segs[len(segs)-1]
	contentType := attrs.ContentType
	if contentType == "" {
		contentType = DetectContentType(name, nil, "")
	}
	public := ws.fm.opts.LegacyNaming && ws.public
	if v, ok := attrs.Metadata[metaVisibility]; ok {
		public = v == "public"
	}
	return &domain.VirtualEntry{
		Path:         append([]string{}, segs[:len(segs)-1]...),
		Name:         name,
		Type:         domain.EntryFile,
		Size:         attrs.Size,
		ContentType:  contentType,
		LastModified: attrs.LastModified,
		IsPublic:     public,
		Folder:       ws.folder,
	}
}

func (ws *Workspace) dirEntry(segs []string, modified time.Time) *domain.VirtualEntry {
	return &domain.VirtualEntry{
		Path:         append([]string{}, segs[:len(segs)-1]...),
		Name:         segs[len(segs)-1],
		Type:         domain.EntryDirectory,
		LastModified: modified,
		IsPublic:     ws.fm.opts.LegacyNaming && ws.public,
		Folder:       ws.folder,
	}
}

// downloadURL presigns a GET link. Failures only cost the link.
func (ws *Workspace) downloadURL(ctx context.Context, ref storage.Ref) string {
	u, err := ws.fm.store.Presign(ctx, ref, ws.fm.opts.DownloadURLTTL)
	if err != nil {
		ws.log.Warn().Err(err).Str("key", ref.Key).Msg("could not presign download url")
		return ""
	}
	return u
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrBucketNotFound)
}

// storeError translates store failures into domain errors. Domain errors
// pass through unchanged.
func storeError(op string, err error) error {
	var domainErr *domain.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case isStoreNotFound(err):
		return domain.NewDomainError(domain.ErrCodeNotFound, op+": entry not found", err)
	case errors.Is(err, storage.ErrAccessDenied):
		return domain.NewDomainError(domain.ErrCodePermissionDenied, op+": object store denied access", err)
	case errors.Is(err, storage.ErrCredentialsUnavailable):
		return domain.NewDomainError(domain.ErrCodeCredentialsUnavailable, op+": no object store credentials", err)
	default:
		return domain.NewDomainError(domain.ErrCodeTransientStoreError, op+" failed", err)
	}
}
