package logstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".logs")
	s, err := New(dir)
	require.NoError(t, err)
	return s, dir
}

func TestAppendAndReadAll(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "check1", `{"n":1}`))
	require.NoError(t, s.Append(ctx, "check1", `{"n":2}`))

	data, err := s.ReadAll(ctx, "check1")
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "check1.log"))
	assert.NoError(t, err)
}

func TestAppend_ConcurrentLinesStayWhole(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, "busy", fmt.Sprintf(`{"n":%d}`, n)))
		}(i)
	}
	wg.Wait()

	data, err := s.ReadAll(ctx, "busy")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, `{"n":`) && strings.HasSuffix(l, "}"), l)
	}
}

func TestList(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	ids, err := s.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.Append(ctx, "b", "x"))
	require.NoError(t, s.Append(ctx, "a", "x"))
	require.NoError(t, s.WriteArchive(ctx, "a-1700000000000", []byte("zz")))

	live, err := s.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, live)

	all, err := s.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a-1700000000000", "b"}, all)

	archives, err := s.ListArchives(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1700000000000"}, archives)
}

func TestList_MissingDirectory(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.RemoveAll(dir))

	ids, err := s.List(context.Background(), false)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestWriteArchive_RefusesOverwrite(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteArchive(ctx, "a-1", []byte("first")))
	err := s.WriteArchive(ctx, "a-1", []byte("second"))
	assert.ErrorIs(t, err, ErrArchiveExists)
}

func TestTruncate(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "a", "line"))
	require.NoError(t, s.Truncate(ctx, "a"))

	data, err := s.ReadAll(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.ErrorIs(t, s.Truncate(ctx, "ghost"), ErrNotFound)
}

func TestArchiveRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	content := []byte("{\"n\":1}\n{\"n\":2}\n")

	encoded, err := Compress(content)
	require.NoError(t, err)
	require.NoError(t, s.WriteArchive(ctx, "a-42", []byte(encoded)))

	raw, err := s.ReadArchive(ctx, "a-42")
	require.NoError(t, err)
	assert.Equal(t, content, raw)

	_, err = s.ReadArchive(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecompress_RejectsGarbage(t *testing.T) {
	_, err := Decompress("not base64!")
	assert.Error(t, err)

	_, err = Decompress("aGVsbG8=") // valid base64, not gzip
	assert.Error(t, err)
}

func TestInvalidIDs(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.Append(context.Background(), "../x", "line"))
	_, err := s.ReadAll(context.Background(), "")
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "a", "before"))
	require.NoError(t, s.Stage(ctx, "a"))
	require.NoError(t, s.Append(ctx, "a", "after"))

	staged, err := s.ReadStaged(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(staged))

	live, err := s.ReadAll(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(live))

	assert.ErrorIs(t, s.Stage(ctx, "a"), ErrStagedExists)
	live, err = s.ReadAll(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(live), "a refused stage leaves the live log alone")

	require.NoError(t, s.RemoveStaged(ctx, "a"))
	_, err = s.ReadStaged(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RemoveStaged(ctx, "a"), ErrNotFound)

	assert.ErrorIs(t, s.Stage(ctx, "ghost"), ErrNotFound)
}

func TestStage_EmptiedLiveLogStaysListed(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "a", "line"))
	require.NoError(t, s.Stage(ctx, "a"))

	live, err := s.ReadAll(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, live)

	ids, err := s.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids, "live and staged copies are listed once")
}

func TestList_IncludesStagedOnlyLogs(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "a", "line"))
	require.NoError(t, s.Stage(ctx, "a"))
	require.NoError(t, os.Remove(filepath.Join(dir, "a.log")))

	ids, err := s.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}
