package storage

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/otiai10/copy"
)

// rename is swapped in tests to simulate a cross-device temp directory.
var rename = os.Rename

// moveFile renames src to dst, copying across filesystems when the temp
// directory lives on a different device. The copy is staged beside dst and
// renamed into place, so dst is either absent or complete.
func moveFile(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	staged, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return err
	}
	stagedPath := staged.Name()
	staged.Close()

	if err := copy.Copy(src, stagedPath, copy.Options{Sync: true}); err != nil {
		os.Remove(stagedPath)
		return err
	}
	if err := rename(stagedPath, dst); err != nil {
		os.Remove(stagedPath)
		return err
	}
	return os.Remove(src)
}
