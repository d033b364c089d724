/* pkg/eos_io/file.go */

package eos_io

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// rename is replaced in tests.
var rename = os.Rename

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file. Bind-mounted
// targets such as /etc/hosts in a container refuse the rename with EBUSY or
// EXDEV; those are rewritten in place instead.
func WriteFileAtomic(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	logger := otelzap.Ctx(ctx)
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return cerr.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return cerr.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return cerr.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return cerr.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return cerr.Wrapf(err, "chmod %s", tmpName)
	}
	if err := rename(tmpName, path); err != nil {
		cleanup()
		if !cerr.Is(err, syscall.EBUSY) && !cerr.Is(err, syscall.EXDEV) {
			return cerr.Wrapf(err, "rename %s to %s", tmpName, path)
		}
		logger.Debug("Rename refused, writing in place", zap.String("path", path), zap.Error(err))
		if err := writeInPlace(path, data, perm); err != nil {
			return err
		}
	}

	logger.Debug("File written", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

func writeInPlace(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return cerr.Wrapf(err, "open %s", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return cerr.Wrapf(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return cerr.Wrapf(err, "sync %s", path)
	}
	return cerr.Wrapf(f.Close(), "close %s", path)
}

// FileHasContent reports whether path exists and holds exactly data.
func FileHasContent(path string, data []byte) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(existing, data)
}

// FileExists reports whether path exists, following symlinks.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// RemoveOriginal deletes original once its content has been installed at
// final. It never deletes when both name the same file, which happens when
// the operator already placed the key at its final location.
func RemoveOriginal(original, final string) (bool, error) {
	if original == "" {
		return false, nil
	}
	if samePath(original, final) {
		return false, nil
	}
	if err := os.Remove(original); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, cerr.Wrapf(err, "remove original %s", original)
	}
	return true, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(filepath.Clean(a))
	absB, errB := filepath.Abs(filepath.Clean(b))
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
