package vpath

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/", nil},
		{"a/b/c", []string{"a", "b", "c"}},
		{"//a///b/", []string{"a", "b"}},
		{"./a/./b", []string{"a", "b"}},
		{"reports/Q1 summary.pdf", []string{"reports", "Q1 summary.pdf"}},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeRejectsTraversal(t *testing.T) {
	for _, in := range []string{"..", "a/../b", "../../etc/passwd", `a\b`, "a/b\x00c", "x/\n"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, domain.ErrInvalidPath, in)
	}
}

func TestNormalizeProperty(t *testing.T) {
	segGen := rapid.StringMatching(`[a-zA-Z0-9 ._-]{0,12}`)
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(segGen, 0, 8).Draw(t, "parts")
		p := strings.Join(parts, "/")

		segs, err := Normalize(p)
		if err != nil {
			assert.Contains(t, parts, "..")
			return
		}
		for _, s := range segs {
			assert.NotEmpty(t, s)
			assert.NotEqual(t, ".", s)
			assert.NotEqual(t, "..", s)
			assert.NotContains(t, s, Delimiter)
		}
		// normalizing the joined form is a fixed point
		again, err := Normalize(Join(segs))
		require.NoError(t, err)
		assert.Equal(t, segs, again)
	})
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("photo.png"))
	assert.ErrorIs(t, ValidateName("a/b"), domain.ErrInvalidPath)
	assert.ErrorIs(t, ValidateName(""), domain.ErrInvalidPath)
	assert.ErrorIs(t, ValidateName(".."), domain.ErrInvalidPath)
	assert.ErrorIs(t, ValidateName(MarkerName), domain.ErrInvalidPath)
}

func TestKeyLayout(t *testing.T) {
	segs := []string{"docs", "a.txt"}
	assert.Equal(t, "files/docs/a.txt", Key(domain.FolderFiles, segs))
	assert.Equal(t, "generated/docs/", DirPrefix(domain.FolderGenerated, segs[:1]))
	assert.Equal(t, "files/", DirPrefix(domain.FolderFiles, nil))
	assert.Equal(t, "files/docs/.keep", MarkerKey(domain.FolderFiles, segs[:1]))
	assert.True(t, IsMarker("files/docs/.keep"))
	assert.False(t, IsMarker("files/docs/x.keep"))

	rel, ok := Relative(domain.FolderFiles, "files/docs/a.txt")
	require.True(t, ok)
	assert.Equal(t, segs, rel)
	_, ok = Relative(domain.FolderFiles, "generated/docs/a.txt")
	assert.False(t, ok)

	assert.True(t, Contains([]string{"a"}, []string{"a", "b"}))
	assert.True(t, Contains(nil, []string{"a"}))
	assert.False(t, Contains([]string{"a", "b"}, []string{"a"}))
}

func seed(t *testing.T, store storage.ObjectStore, bucket string, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := store.Put(context.Background(), storage.Ref{Bucket: bucket, Key: k}, []byte(k), storage.PutOptions{})
		require.NoError(t, err)
	}
}

func TestListChildrenGroupsAndHidesMarkers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	seed(t, store, "b", "files/b.txt", "files/a/x.txt", "files/a/y/z.txt", "files/empty/.keep", "files/.keep")

	children, exists, err := ListChildren(ctx, store, "b", "files/")
	require.NoError(t, err)
	assert.True(t, exists)

	var names []string
	for _, c := range children {
		names = append(names, fmt.Sprintf("%s:%v", c.Name, c.IsDir))
	}
	assert.Equal(t, []string{"a:true", "b.txt:false", "empty:true"}, names)

	children, exists, err = ListChildren(ctx, store, "b", "files/empty/")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, children)

	_, exists, err = ListChildren(ctx, store, "b", "files/nothing/")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWalkAndKeyPagesSpanPages(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	var keys []string
	for i := range 1205 {
		keys = append(keys, fmt.Sprintf("files/big/%05d", i))
	}
	seed(t, store, "b", keys...)

	n := 0
	for obj, err := range Walk(ctx, store, "b", "files/big/") {
		require.NoError(t, err)
		assert.Equal(t, keys[n], obj.Key)
		n++
	}
	assert.Equal(t, len(keys), n)

	var sizes []int
	for batch, err := range KeyPages(ctx, store, "b", "files/big/") {
		require.NoError(t, err)
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{1000, 205}, sizes)

	ok, err := DirExists(ctx, store, "b", "files/big/")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = DirExists(ctx, store, "b", "files/small/")
	require.NoError(t, err)
	assert.False(t, ok)
}
