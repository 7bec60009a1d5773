package storage

import (
	"regexp"
	"testing"

	"polysynergy/file-manager/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var unifiedNameRe = regexp.MustCompile(`^polysynergy-[0-9a-f]{8}-[0-9a-f]{8}-media$`)

func TestMediaBucketNameHashesLongIDs(t *testing.T) {
	name, err := MediaBucketName("3f1c2a9e-7b8d-4e5f-9a0b-1c2d3e4f5a6b", "project-0001-alpha")
	require.NoError(t, err)
	assert.Regexp(t, unifiedNameRe, name)

	// MD5 keeps names compatible with buckets created before.
	tenantShort := md5Hex("3f1c2a9e-7b8d-4e5f-9a0b-1c2d3e4f5a6b")[:8]
	assert.Equal(t, "polysynergy-"+tenantShort+"-"+md5Hex("project-0001-alpha")[:8]+"-media", name)
}

func TestMediaBucketNameKeepsShortIDs(t *testing.T) {
	name, err := MediaBucketName("acme", "Proj_1")
	require.NoError(t, err)
	assert.Equal(t, "polysynergy-acme-proj-1-media", name)
}

func TestMediaBucketNameFoldsShortIDs(t *testing.T) {
	upper, err := MediaBucketName("ACME", "proj_1")
	require.NoError(t, err)
	lower, err := MediaBucketName("acme", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestMediaBucketNameRehashesIllegalShortIDs(t *testing.T) {
	name, err := MediaBucketName("a.b/c", "p1")
	require.NoError(t, err)
	assert.Equal(t, "polysynergy-"+md5Hex("a.b/c")[:8]+"-p1-media", name)
}

func TestMediaBucketNameRejectsEmptyIDs(t *testing.T) {
	_, err := MediaBucketName("", "p1")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)

	_, err = MediaBucketName("t1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}

func TestLegacyBucketName(t *testing.T) {
	private, err := LegacyBucketName("Tenant42", false)
	require.NoError(t, err)
	assert.Equal(t, "ps-private-files-tenant42", private)

	public, err := LegacyBucketName("tenant42", true)
	require.NoError(t, err)
	assert.Equal(t, "ps-public-files-tenant42", public)

	_, err = LegacyBucketName("bad_tenant", false)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}

func TestBucketNamerModes(t *testing.T) {
	scope := domain.TenantScope{TenantID: "tenant42", ProjectID: "proj"}

	unified, err := NewBucketNamer(false).Bucket(scope, true)
	require.NoError(t, err)
	assert.Equal(t, "polysynergy-tenant42-proj-media", unified)

	legacy, err := NewBucketNamer(true).Bucket(scope, true)
	require.NoError(t, err)
	assert.Equal(t, "ps-public-files-tenant42", legacy)

	all, err := NewBucketNamer(true).Buckets(scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"ps-private-files-tenant42", "ps-public-files-tenant42"}, all)

	all, err = NewBucketNamer(false).Buckets(scope)
	require.NoError(t, err)
	assert.Equal(t, []string{unified}, all)
}

func TestMediaBucketNameDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tenant := rapid.StringN(9, 64, -1).Draw(t, "tenant")
		project := rapid.StringN(9, 64, -1).Draw(t, "project")

		first, err := MediaBucketName(tenant, project)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := MediaBucketName(tenant, project)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second {
			t.Fatalf("names differ: %q vs %q", first, second)
		}
		if !unifiedNameRe.MatchString(first) {
			t.Fatalf("name %q does not match the unified pattern", first)
		}
	})
}

func TestMediaBucketNameAlwaysValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tenant := rapid.StringN(1, 16, -1).Draw(t, "tenant")
		project := rapid.StringN(1, 16, -1).Draw(t, "project")

		name, err := MediaBucketName(tenant, project)
		if err != nil {
			t.Fatalf("unexpected error for %q/%q: %v", tenant, project, err)
		}
		if !validBucketName(name) {
			t.Fatalf("invalid bucket name %q", name)
		}
	})
}
