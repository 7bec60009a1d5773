package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = time.Hour

// MaxPresignedURLExpiry is the longest expiry SigV4 accepts.
const MaxPresignedURLExpiry = 7 * 24 * time.Hour

// MaxKeysPerRequest bounds list pages and multi-object deletes.
const MaxKeysPerRequest = 1000

// ACL values accepted by Put.
type ACL string

const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

// Ref addresses a single object. Region is optional; an empty value means
// the client's configured region.
type Ref struct {
	Bucket string
	Key    string
	Region string
}

// PutOptions carries the per-object attributes written by Put.
type PutOptions struct {
	ContentType string
	ACL         ACL
	Metadata    map[string]string
}

// CopyOptions controls the destination of a Copy. A nil Metadata keeps the
// source's content type and user metadata; a non-nil one replaces both.
type CopyOptions struct {
	ACL         ACL
	ContentType string
	Metadata    map[string]string
}

// ObjectAttrs is what Head, Put and Copy report about an object.
type ObjectAttrs struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// ListInput selects one page of a listing.
type ListInput struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int
}

// ListPage is one page of a listing. CommonPrefixes keep their trailing delimiter.
type ListPage struct {
	Objects               []ObjectAttrs
	CommonPrefixes        []string
	NextContinuationToken string
	IsTruncated           bool
}

// ObjectStore is the object-store contract consumed by the file manager and
// the URL refresher. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Put writes an object, replacing any previous version.
	Put(ctx context.Context, ref Ref, body []byte, opts PutOptions) (*ObjectAttrs, error)

	// Get opens an object's payload. The caller closes the reader.
	Get(ctx context.Context, ref Ref) (io.ReadCloser, *ObjectAttrs, error)

	// Head returns object attributes without transferring the payload.
	// Returns ErrObjectNotFound when the key does not exist.
	Head(ctx context.Context, ref Ref) (*ObjectAttrs, error)

	// Delete removes an object. Deleting an absent key succeeds.
	Delete(ctx context.Context, ref Ref) error

	// DeleteMany removes up to MaxKeysPerRequest keys from one bucket.
	DeleteMany(ctx context.Context, bucket string, keys []string) error

	// List returns one page of keys and common prefixes.
	List(ctx context.Context, bucket string, in ListInput) (*ListPage, error)

	// Copy duplicates src to dst server-side and returns the new attributes.
	// The ACL is not carried over, so callers pass it again.
	Copy(ctx context.Context, src, dst Ref, opts CopyOptions) (*ObjectAttrs, error)

	// Presign issues a GET URL valid for ttl.
	Presign(ctx context.Context, ref Ref, ttl time.Duration) (string, error)

	// HeadBucket probes a bucket without modifying it.
	HeadBucket(ctx context.Context, bucket string) error

	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// CheckCredentials reports ErrCredentialsUnavailable when no usable
	// credentials can be resolved.
	CheckCredentials(ctx context.Context) error
}

// Error constants for storage layer
var (
	ErrObjectNotFound         = errors.New("object not found in storage")
	ErrBucketNotFound         = errors.New("bucket not found")
	ErrAccessDenied           = errors.New("access to object denied")
	ErrCredentialsUnavailable = errors.New("no object store credentials available")
)

// ClampExpiry bounds a presign TTL to (0, MaxPresignedURLExpiry].
func ClampExpiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultPresignedURLExpiry
	}
	if ttl > MaxPresignedURLExpiry {
		return MaxPresignedURLExpiry
	}
	return ttl
}
