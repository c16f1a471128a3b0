package helpers

import (
	"fmt"
	"io"
	"os"

	"github.com/migadu/vquota/consts"
)

// MessageSize returns the size of the message on f in allocated bytes.
//
// A regular file is measured by its allocated blocks without being read.
// Anything else, such as a pipe, is drained and its length rounded up to
// whole blocks, which is what the message will occupy once stored.
func MessageSize(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", consts.ErrMessageSize, err)
	}
	if info.Mode().IsRegular() {
		size, err := allocatedSize(f)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", consts.ErrMessageSize, err)
		}
		return size, nil
	}

	n, err := io.Copy(io.Discard, f)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", consts.ErrMessageSize, err)
	}
	return RoundUpToBlock(uint64(n)), nil
}

// RoundUpToBlock rounds n up to a multiple of the 512-byte block size.
func RoundUpToBlock(n uint64) uint64 {
	return (n + consts.BlockSize - 1) / consts.BlockSize * consts.BlockSize
}
