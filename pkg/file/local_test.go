package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/file"
)

func newLocal(t *testing.T) (*file.LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := file.NewLocalStorage(dir)
	require.NoError(t, err)
	return s, dir
}

func TestNewLocalStorage(t *testing.T) {
	t.Parallel()

	t.Run("empty base dir", func(t *testing.T) {
		t.Parallel()
		_, err := file.NewLocalStorage("")
		assert.ErrorIs(t, err, file.ErrInvalidConfig)
	})

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "nested", "blobs")
		_, err := file.NewLocalStorage(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestLocalStorage_PutGet(t *testing.T) {
	t.Parallel()

	s, dir := newLocal(t)
	ctx := context.Background()
	payload := []byte{0x01, 0x07, 0xde, 0xad, 0xbe, 0xef}

	require.NoError(t, s.Put(ctx, "user_1_abc.enc", payload))

	got, err := s.Get(ctx, "user_1_abc.enc")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	info, err := os.Stat(filepath.Join(dir, "user_1_abc.enc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Overwrite replaces content.
	require.NoError(t, s.Put(ctx, "user_1_abc.enc", []byte("v2")))
	got, err = s.Get(ctx, "user_1_abc.enc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStorage_NestedKey(t *testing.T) {
	t.Parallel()

	s, dir := newLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "resumes/2026/a.enc", []byte("x")))
	_, err := os.Stat(filepath.Join(dir, "resumes", "2026", "a.enc"))
	require.NoError(t, err)

	_, err = s.Get(ctx, "resumes/2026")
	assert.ErrorIs(t, err, file.ErrIsDirectory)
}

func TestLocalStorage_Missing(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope.enc")
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	err = s.Delete(ctx, "nope.enc")
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	ok, err := s.Exists(ctx, "nope.enc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_Delete(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a.enc", []byte("a")))
	ok, err := s.Exists(ctx, "a.enc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "a.enc"))

	ok, err = s.Exists(ctx, "a.enc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_DeleteMany(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a.enc", []byte("a")))
	require.NoError(t, s.Put(ctx, "b.enc", []byte("b")))

	require.NoError(t, s.DeleteMany(ctx, []string{"a.enc", "b.enc", "missing.enc"}))

	for _, key := range []string{"a.enc", "b.enc"} {
		ok, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestLocalStorage_PathTraversal(t *testing.T) {
	t.Parallel()

	s, dir := newLocal(t)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(dir), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	t.Cleanup(func() { _ = os.Remove(outside) })

	keys := []string{
		"",
		"/etc/passwd",
		"../outside.txt",
		"a/../../outside.txt",
		"..",
		".",
		"a\\..\\b",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, s.Put(ctx, key, []byte("x")), file.ErrInvalidPath)

			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, file.ErrInvalidPath)

			assert.ErrorIs(t, s.Delete(ctx, key), file.ErrInvalidPath)

			_, err = s.Exists(ctx, key)
			assert.ErrorIs(t, err, file.ErrInvalidPath)
		})
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	t.Parallel()

	s, _ := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, "a.enc", []byte("a")), context.Canceled)
	_, err := s.Get(ctx, "a.enc")
	assert.ErrorIs(t, err, context.Canceled)
}
