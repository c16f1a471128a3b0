//go:build unix

package helpers

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/migadu/vquota/consts"
)

func allocatedSize(f *os.File) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, err
	}
	return uint64(st.Blocks) * consts.BlockSize, nil
}
