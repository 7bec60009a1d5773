package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"polysynergy/file-manager/internal/domain"
)

// Bucket name components. The unified scheme is
//
//	polysynergy-{h(tenant)}-{h(project)}-media
//
// where h keeps ids of up to 8 characters verbatim and otherwise takes the
// first 8 hex characters of their MD5. MD5 is kept because previously
// created buckets were named with it.
//
// Collisions: each hashed component carries 32 bits, so two distinct ids
// collide with probability ~1/2^32 and a 50% chance of any collision is only
// reached around 77k distinct ids per component. Names are never stored in
// an index, so a collision would silently merge namespaces; watch the
// tenant/project cardinality rather than relying on uniqueness.
//
// Short ids are lowercased (and "_" becomes "-") before use, so ids that
// differ only in case or in "_" versus "-" ("ACME", "acme") share a bucket
// and pass each other's scope check.
const (
	unifiedPrefix    = "polysynergy-"
	unifiedSuffix    = "-media"
	fallbackPrefix   = "poly-"
	legacyPrivateFmt = "ps-private-files-%s"
	legacyPublicFmt  = "ps-public-files-%s"

	shortIDLen    = 8
	maxBucketName = 63
	minBucketName = 3
	fallbackIDLen = 6
)

var (
	// component characters allowed after lower-casing
	componentRe = regexp.MustCompile(`^[a-z0-9-]+$`)
	bucketRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)
)

// BucketNamer derives bucket names for tenant scopes. It holds no state
// beyond the naming mode, so one value can be shared freely.
type BucketNamer struct {
	Legacy bool
}

// NewBucketNamer returns a namer for the configured scheme.
func NewBucketNamer(legacy bool) BucketNamer {
	return BucketNamer{Legacy: legacy}
}

// Bucket returns the bucket a scope's objects live in. In unified mode the
// public flag does not change the bucket (visibility is an object ACL); in
// legacy mode it selects the public bucket.
func (n BucketNamer) Bucket(scope domain.TenantScope, public bool) (string, error) {
	if n.Legacy {
		return LegacyBucketName(scope.TenantID, public)
	}
	return MediaBucketName(scope.TenantID, scope.ProjectID)
}

// Buckets lists every bucket that may hold objects of scope.
func (n BucketNamer) Buckets(scope domain.TenantScope) ([]string, error) {
	if !n.Legacy {
		b, err := MediaBucketName(scope.TenantID, scope.ProjectID)
		if err != nil {
			return nil, err
		}
		return []string{b}, nil
	}
	private, err := LegacyBucketName(scope.TenantID, false)
	if err != nil {
		return nil, err
	}
	public, err := LegacyBucketName(scope.TenantID, true)
	if err != nil {
		return nil, err
	}
	return []string{private, public}, nil
}

// MediaBucketName computes the unified per-project bucket name.
func MediaBucketName(tenantID, projectID string) (string, error) {
	if tenantID == "" || projectID == "" {
		return "", domain.ErrInvalidIdentifier
	}
	name := unifiedPrefix + shorten(tenantID) + "-" + shorten(projectID) + unifiedSuffix
	if len(name) > maxBucketName {
		name = fallbackPrefix + md5Hex(tenantID)[:fallbackIDLen] + "-" + md5Hex(projectID)[:fallbackIDLen] + unifiedSuffix
	}
	if !validBucketName(name) {
		return "", domain.NewDomainError(domain.ErrCodeInvalidIdentifier, fmt.Sprintf("derived bucket name %q is invalid", name), nil)
	}
	return name, nil
}

// LegacyBucketName computes the per-tenant private/public bucket names of
// the old scheme. The tenant id is embedded as-is, so ids that cannot form
// a valid bucket name are rejected rather than rewritten.
func LegacyBucketName(tenantID string, public bool) (string, error) {
	if tenantID == "" {
		return "", domain.ErrInvalidIdentifier
	}
	format := legacyPrivateFmt
	if public {
		format = legacyPublicFmt
	}
	name := fmt.Sprintf(format, strings.ToLower(tenantID))
	if !validBucketName(name) {
		return "", domain.NewDomainError(domain.ErrCodeInvalidIdentifier, fmt.Sprintf("tenant id %q cannot form a legacy bucket name", tenantID), nil)
	}
	return name, nil
}

// shorten implements h(x). Short ids that still contain characters illegal
// in bucket names are hashed as well.
func shorten(id string) string {
	if len(id) > shortIDLen {
		return md5Hex(id)[:shortIDLen]
	}
	c := strings.ReplaceAll(strings.ToLower(id), "_", "-")
	if !componentRe.MatchString(c) {
		return md5Hex(id)[:shortIDLen]
	}
	return c
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func validBucketName(name string) bool {
	if len(name) < minBucketName || len(name) > maxBucketName {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return bucketRe.MatchString(name)
}
