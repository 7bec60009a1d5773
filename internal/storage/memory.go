package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FaultFunc lets tests fail selected operations. Returning nil lets the
// operation proceed.
type FaultFunc func(op string, ref Ref) error

// CopyHook rewrites the payload a Copy writes to dst, standing in for a
// backend that corrupts or truncates a copy.
type CopyHook func(dst Ref, body []byte) []byte

type memObject struct {
	body         []byte
	contentType  string
	etag         string
	lastModified time.Time
	metadata     map[string]string
}

// MemoryStorage is an in-process ObjectStore used by the "memory" driver and
// by tests. Buckets are created implicitly on first write.
type MemoryStorage struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memObject

	calls   atomic.Int64
	signSeq atomic.Int64
	noCreds atomic.Bool
	fault   atomic.Pointer[FaultFunc]
	copyFn  atomic.Pointer[CopyHook]
	now     func() time.Time
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		buckets: make(map[string]map[string]*memObject),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Calls reports how many store operations were issued.
func (m *MemoryStorage) Calls() int64 { return m.calls.Load() }

// SetFault installs (or clears, with nil) a fault hook.
func (m *MemoryStorage) SetFault(f FaultFunc) {
	if f == nil {
		m.fault.Store(nil)
		return
	}
	m.fault.Store(&f)
}

// SetCopyHook installs (or clears, with nil) a hook applied to copied payloads.
func (m *MemoryStorage) SetCopyHook(h CopyHook) {
	if h == nil {
		m.copyFn.Store(nil)
		return
	}
	m.copyFn.Store(&h)
}

// SetCredentialsAvailable toggles what CheckCredentials reports.
func (m *MemoryStorage) SetCredentialsAvailable(ok bool) { m.noCreds.Store(!ok) }

func (m *MemoryStorage) enter(ctx context.Context, op string, ref Ref) error {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if f := m.fault.Load(); f != nil {
		if err := (*f)(op, ref); err != nil {
			return err
		}
	}
	return nil
}

func etagOf(body []byte) string {
	sum := md5.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (o *memObject) attrs(key string) *ObjectAttrs {
	return &ObjectAttrs{
		Key:          key,
		Size:         int64(len(o.body)),
		ContentType:  o.contentType,
		ETag:         o.etag,
		LastModified: o.lastModified,
		Metadata:     maps.Clone(o.metadata),
	}
}

func (m *MemoryStorage) lookup(ref Ref) (*memObject, error) {
	b, ok := m.buckets[ref.Bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, ref.Bucket)
	}
	obj, ok := b[ref.Key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, ref.Bucket, ref.Key)
	}
	return obj, nil
}

func (m *MemoryStorage) Put(ctx context.Context, ref Ref, body []byte, opts PutOptions) (*ObjectAttrs, error) {
	if err := m.enter(ctx, "put", ref); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[ref.Bucket]
	if !ok {
		b = make(map[string]*memObject)
		m.buckets[ref.Bucket] = b
	}
	metadata := maps.Clone(opts.Metadata)
	if opts.ACL != "" {
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata["x-acl"] = string(opts.ACL)
	}
	obj := &memObject{
		body:         bytes.Clone(body),
		contentType:  opts.ContentType,
		etag:         etagOf(body),
		lastModified: m.now(),
		metadata:     metadata,
	}
	b[ref.Key] = obj
	return obj.attrs(ref.Key), nil
}

func (m *MemoryStorage) Get(ctx context.Context, ref Ref) (io.ReadCloser, *ObjectAttrs, error) {
	if err := m.enter(ctx, "get", ref); err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, err := m.lookup(ref)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.body))), obj.attrs(ref.Key), nil
}

func (m *MemoryStorage) Head(ctx context.Context, ref Ref) (*ObjectAttrs, error) {
	if err := m.enter(ctx, "head", ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, err := m.lookup(ref)
	if err != nil {
		return nil, err
	}
	return obj.attrs(ref.Key), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, ref Ref) error {
	if err := m.enter(ctx, "delete", ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buckets[ref.Bucket]; ok {
		delete(b, ref.Key)
	}
	return nil
}

func (m *MemoryStorage) DeleteMany(ctx context.Context, bucket string, keys []string) error {
	if len(keys) > MaxKeysPerRequest {
		return fmt.Errorf("delete of %d keys exceeds the %d key limit", len(keys), MaxKeysPerRequest)
	}
	for _, k := range keys {
		if err := m.enter(ctx, "delete_many", Ref{Bucket: bucket, Key: k}); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buckets[bucket]; ok {
		for _, k := range keys {
			delete(b, k)
		}
	}
	return nil
}

// List mirrors ListObjectsV2: keys in lexical order, grouping on the
// delimiter, continuation token encoding the last key consumed.
func (m *MemoryStorage) List(ctx context.Context, bucket string, in ListInput) (*ListPage, error) {
	if err := m.enter(ctx, "list", Ref{Bucket: bucket, Key: in.Prefix}); err != nil {
		return nil, err
	}
	marker := ""
	if in.ContinuationToken != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(in.ContinuationToken)
		if err != nil {
			return nil, fmt.Errorf("invalid continuation token: %w", err)
		}
		marker = string(decoded)
	}
	maxKeys := in.MaxKeys
	if maxKeys <= 0 || maxKeys > MaxKeysPerRequest {
		maxKeys = MaxKeysPerRequest
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		if strings.HasPrefix(k, in.Prefix) && k > marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &ListPage{}
	n, last := 0, ""
	for i := 0; i < len(keys); {
		if n == maxKeys {
			page.IsTruncated = true
			page.NextContinuationToken = base64.RawURLEncoding.EncodeToString([]byte(last))
			break
		}
		k := keys[i]
		if in.Delimiter != "" {
			rest := k[len(in.Prefix):]
			if j := strings.Index(rest, in.Delimiter); j >= 0 {
				cp := in.Prefix + rest[:j+len(in.Delimiter)]
				page.CommonPrefixes = append(page.CommonPrefixes, cp)
				for i < len(keys) && strings.HasPrefix(keys[i], cp) {
					last = keys[i]
					i++
				}
				n++
				continue
			}
		}
		page.Objects = append(page.Objects, *b[k].attrs(k))
		last = k
		i++
		n++
	}
	return page, nil
}

func (m *MemoryStorage) Copy(ctx context.Context, src, dst Ref, opts CopyOptions) (*ObjectAttrs, error) {
	if err := m.enter(ctx, "copy", dst); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.lookup(src)
	if err != nil {
		return nil, err
	}
	b, ok := m.buckets[dst.Bucket]
	if !ok {
		b = make(map[string]*memObject)
		m.buckets[dst.Bucket] = b
	}
	contentType, metadata := obj.contentType, maps.Clone(obj.metadata)
	if opts.Metadata != nil {
		metadata = maps.Clone(opts.Metadata)
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
	}
	delete(metadata, "x-acl")
	if opts.ACL != "" {
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata["x-acl"] = string(opts.ACL)
	}
	body := bytes.Clone(obj.body)
	if h := m.copyFn.Load(); h != nil {
		body = (*h)(dst, body)
	}
	cp := &memObject{
		body:         body,
		contentType:  contentType,
		etag:         etagOf(body),
		lastModified: m.now(),
		metadata:     metadata,
	}
	b[dst.Key] = cp
	return cp.attrs(dst.Key), nil
}

// Presign returns a virtual-hosted URL with a unique fake signature.
func (m *MemoryStorage) Presign(ctx context.Context, ref Ref, ttl time.Duration) (string, error) {
	if err := m.enter(ctx, "presign", ref); err != nil {
		return "", err
	}
	if m.noCreds.Load() {
		return "", ErrCredentialsUnavailable
	}
	host := ref.Bucket + ".s3.amazonaws.com"
	if ref.Region != "" {
		host = ref.Bucket + ".s3." + ref.Region + ".amazonaws.com"
	}
	segs := strings.Split(ref.Key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s/%s#%d", ref.Bucket, ref.Key, m.signSeq.Add(1))))
	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int64(ClampExpiry(ttl)/time.Second)))
	q.Set("X-Amz-Signature", hex.EncodeToString(sum[:]))
	return "https://" + host + "/" + strings.Join(segs, "/") + "?" + q.Encode(), nil
}

func (m *MemoryStorage) HeadBucket(ctx context.Context, bucket string) error {
	if err := m.enter(ctx, "head_bucket", Ref{Bucket: bucket}); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.buckets[bucket]; !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	return nil
}

func (m *MemoryStorage) EnsureBucket(ctx context.Context, bucket string) error {
	if err := m.enter(ctx, "create_bucket", Ref{Bucket: bucket}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]*memObject)
	}
	return nil
}

func (m *MemoryStorage) CheckCredentials(ctx context.Context) error {
	if m.noCreds.Load() {
		return ErrCredentialsUnavailable
	}
	return nil
}
