package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/models"
)

// videoExtensions are the container extensions the repository recognizes.
var videoExtensions = map[string]bool{
	".mkv": true,
	".mp4": true,
}

// IsVideoFile reports whether a path looks like a video asset.
func IsVideoFile(path string) bool {
	return videoExtensions[filepath.Ext(path)]
}

// writeFileAtomic writes data so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems, which is the common case when recordings land on a scratch
// disk.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrExist) && !isCrossDevice(err) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer out.Cleanup()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr)
}

// ensureFreeDisk fails a save early when the target filesystem is below the
// configured free-space floor.
func ensureFreeDisk(dir string, minFree config.ByteSize) error {
	if minFree <= 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		// Unknown filesystems do not block saves.
		return nil
	}
	if usage.Free < uint64(minFree) {
		return models.NewError(models.KindDevice,
			fmt.Sprintf("free disk %d below floor %d on %s", usage.Free, uint64(minFree), dir))
	}
	return nil
}
