package eos_io

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("one"), 0640))
	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("two"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomicBindMountFallback(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EBUSY, syscall.EXDEV} {
		t.Run(errno.Error(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hosts")
			require.NoError(t, os.WriteFile(path, []byte("127.0.0.1 localhost\n127.0.1.1 web01\n"), 0644))

			rename = func(oldpath, newpath string) error {
				return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}
			}
			t.Cleanup(func() { rename = os.Rename })

			require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("127.0.1.1 web01.example.com\n"), 0644))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "127.0.1.1 web01.example.com\n", string(data))
			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp files must not be left behind")
		})
	}
}

func TestWriteFileAtomicOtherRenameErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	require.NoError(t, os.WriteFile(path, []byte("web01\n"), 0644))

	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
	}
	t.Cleanup(func() { rename = os.Rename })

	require.Error(t, WriteFileAtomic(context.Background(), path, []byte("web01.example.com\n"), 0644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "web01\n", string(data))
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	assert.Error(t, WriteFileAtomic(context.Background(), path, []byte("x"), 0600))
}

func TestWriteYAMLIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	in := map[string]map[string]string{"extension_requests": {"pp_role": "web"}}

	changed, err := WriteYAML(context.Background(), path, in, 0644)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteYAML(context.Background(), path, in, 0644)
	require.NoError(t, err)
	assert.False(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "extension_requests:\n  pp_role: web\n", string(data))
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0600))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(file))
	assert.True(t, FileHasContent(file, []byte("abc")))
	assert.False(t, FileHasContent(file, []byte("abcd")))
}

func TestRuntimeContextEnd(t *testing.T) {
	rc := NewTestContext(t)
	rc.Attributes["role"] = "agent"

	var err error
	rc.End(&err)

	rc = NewTestContext(t)
	err = eos_err.NewDeclinedError("bootstrap")
	rc.End(&err)
	assert.Equal(t, "declined", classifyError(err))
	assert.Equal(t, "system", classifyError(cerr.New("x")))
	assert.Equal(t, "", classifyError(nil))
}

func TestHandlePanic(t *testing.T) {
	rc := NewTestContext(t)
	run := func() (err error) {
		defer rc.HandlePanic(&err)
		panic("kaboom")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRemoveOriginalSamePathNeverDeletes(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "r10k_deploy_key")
	require.NoError(t, os.WriteFile(key, []byte("secret"), 0600))

	// same file spelled differently
	removed, err := RemoveOriginal(filepath.Join(dir, ".", "r10k_deploy_key"), key)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, FileExists(key))

	orig := filepath.Join(dir, "uploaded_key")
	require.NoError(t, os.WriteFile(orig, []byte("secret"), 0600))
	removed, err = RemoveOriginal(orig, key)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, FileExists(orig))

	removed, err = RemoveOriginal("", key)
	require.NoError(t, err)
	assert.False(t, removed)
}
