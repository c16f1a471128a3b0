//go:build unix

package quota

import (
	"golang.org/x/sys/unix"

	"github.com/migadu/vquota/consts"
)

type fileStat struct {
	allocated uint64
	isDir     bool
	isRegular bool
}

// statPath follows symlinks, so a warning link is accounted at the size
// of the message it points to.
func statPath(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileStat{}, err
	}
	mode := uint32(st.Mode) & unix.S_IFMT
	return fileStat{
		allocated: uint64(st.Blocks) * consts.BlockSize,
		isDir:     mode == unix.S_IFDIR,
		isRegular: mode == unix.S_IFREG,
	}, nil
}

// AllocatedSize returns the space allocated to path in bytes.
func AllocatedSize(path string) (uint64, error) {
	st, err := statPath(path)
	if err != nil {
		return 0, err
	}
	return st.allocated, nil
}
