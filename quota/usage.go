package quota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/migadu/vquota/consts"
)

// Usage is the disk usage of a mailbox tree.
type Usage struct {
	FileCount  uint64
	TotalBytes uint64
}

// scanMode selects which rules apply to the entries of a directory.
type scanMode int

const (
	// scanRoot is the mailbox root.
	scanRoot scanMode = iota
	// scanFolder is a nested folder below the root, however deep.
	scanFolder
	// scanMessages is a cur or new directory holding message files.
	scanMessages
)

// ScanMailbox measures the mailbox rooted at root.
//
// The root, its files and every directory below it count toward
// TotalBytes. Regular files in cur and new directories count toward both
// TotalBytes and FileCount. The contents of tmp directories are ignored.
// Every other directory is a nested folder and is scanned with the same
// rules, however deep, except that loose files in a nested folder, such
// as maildirfolder or dovecot-uidlist, are not counted.
//
// Any stat or directory read failure aborts the scan; a partial result
// would undercount the mailbox.
func ScanMailbox(ctx context.Context, root string) (Usage, error) {
	size, err := AllocatedSize(root)
	if err != nil {
		return Usage{}, fmt.Errorf("%w: cannot stat '%s': %w", consts.ErrMailboxScan, root, err)
	}

	usage := Usage{TotalBytes: size}
	if err := scanDir(ctx, root, scanRoot, &usage); err != nil {
		return Usage{}, err
	}
	return usage, nil
}

func scanDir(ctx context.Context, dir string, mode scanMode, usage *Usage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", consts.ErrMailboxScan, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: could not open directory '%s': %w", consts.ErrMailboxScan, dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		if mode == scanFolder && entry.Type().IsRegular() {
			continue
		}

		st, err := statPath(path)
		if err != nil {
			return fmt.Errorf("%w: cannot stat '%s': %w", consts.ErrMailboxScan, path, err)
		}

		if mode == scanMessages {
			if st.isRegular {
				usage.FileCount++
				usage.TotalBytes += st.allocated
			}
			continue
		}

		if !st.isDir {
			if mode == scanRoot {
				usage.TotalBytes += st.allocated
			}
			continue
		}
		usage.TotalBytes += st.allocated

		switch name {
		case consts.MaildirCur, consts.MaildirNew:
			err = scanDir(ctx, path, scanMessages, usage)
		case consts.MaildirTmp:
			// Deliveries in progress never count.
		default:
			err = scanDir(ctx, path, scanFolder, usage)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
