package quota

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/vquota/consts"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func allocated(t *testing.T, paths ...string) uint64 {
	t.Helper()
	var total uint64
	for _, p := range paths {
		size, err := AllocatedSize(p)
		require.NoError(t, err)
		total += size
	}
	return total
}

// newMaildir creates an empty maildir at root.
func newMaildir(t *testing.T, root string) {
	t.Helper()
	mkdirs(t,
		filepath.Join(root, consts.MaildirCur),
		filepath.Join(root, consts.MaildirNew),
		filepath.Join(root, consts.MaildirTmp),
	)
}

func TestScanMailbox_Empty(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), usage.FileCount)
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "new"),
		filepath.Join(root, "tmp"),
	), usage.TotalBytes)
}

func TestScanMailbox_CountsCurAndNewIgnoresTmpContents(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	writeFile(t, filepath.Join(root, "cur", "1.host:2,S"), 100)
	writeFile(t, filepath.Join(root, "cur", "2.host:2,"), 5000)
	writeFile(t, filepath.Join(root, "new", "3.host"), 10)
	writeFile(t, filepath.Join(root, "tmp", "4.host"), 90000)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), usage.FileCount)
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "cur", "1.host:2,S"),
		filepath.Join(root, "cur", "2.host:2,"),
		filepath.Join(root, "new"),
		filepath.Join(root, "new", "3.host"),
		filepath.Join(root, "tmp"),
	), usage.TotalBytes)
}

func TestScanMailbox_TopLevelFilesCountBytesOnly(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	writeFile(t, filepath.Join(root, "maildirsize"), 2000)
	writeFile(t, filepath.Join(root, "subscriptions"), 30)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), usage.FileCount)
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "new"),
		filepath.Join(root, "tmp"),
		filepath.Join(root, "maildirsize"),
		filepath.Join(root, "subscriptions"),
	), usage.TotalBytes)
}

func TestScanMailbox_NestedFolders(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	writeFile(t, filepath.Join(root, "cur", "a"), 700)

	sub := filepath.Join(root, ".Archive")
	newMaildir(t, sub)
	writeFile(t, filepath.Join(sub, "cur", "b"), 3000)
	writeFile(t, filepath.Join(sub, "cur", "c"), 1)
	writeFile(t, filepath.Join(sub, "new", "d"), 9000)
	writeFile(t, filepath.Join(sub, "tmp", "e"), 9000)

	deep := filepath.Join(sub, ".2019")
	mkdirs(t, filepath.Join(deep, "cur"))
	writeFile(t, filepath.Join(deep, "cur", "f"), 4097)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	// a at the root, b c d in the subfolder, f two levels down
	assert.Equal(t, uint64(5), usage.FileCount)
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "cur", "a"),
		filepath.Join(root, "new"),
		filepath.Join(root, "tmp"),
		sub,
		filepath.Join(sub, "cur"),
		filepath.Join(sub, "cur", "b"),
		filepath.Join(sub, "cur", "c"),
		filepath.Join(sub, "new"),
		filepath.Join(sub, "new", "d"),
		filepath.Join(sub, "tmp"),
		deep,
		filepath.Join(deep, "cur"),
		filepath.Join(deep, "cur", "f"),
	), usage.TotalBytes)
}

func TestScanMailbox_RecursesIntoUnrelatedFolders(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	notes := filepath.Join(root, "notes")
	writeFile(t, filepath.Join(notes, "todo.txt"), 1500)
	writeFile(t, filepath.Join(notes, "new", "draft"), 800)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), usage.FileCount, "only files under a new directory are messages")
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "new"),
		filepath.Join(root, "tmp"),
		notes,
		filepath.Join(notes, "new"),
		filepath.Join(notes, "new", "draft"),
	), usage.TotalBytes)
}

func TestScanMailbox_IgnoresLooseFilesInNestedFolders(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	writeFile(t, filepath.Join(root, "dovecot-uidlist"), 300)

	sub := filepath.Join(root, ".Sent")
	newMaildir(t, sub)
	writeFile(t, filepath.Join(sub, "maildirfolder"), 0)
	writeFile(t, filepath.Join(sub, "dovecot-uidlist"), 9000)
	writeFile(t, filepath.Join(sub, "cur", "1.host:2,S"), 100)

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), usage.FileCount)
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "dovecot-uidlist"),
		filepath.Join(root, "cur"),
		filepath.Join(root, "new"),
		filepath.Join(root, "tmp"),
		sub,
		filepath.Join(sub, "cur"),
		filepath.Join(sub, "cur", "1.host:2,S"),
		filepath.Join(sub, "new"),
		filepath.Join(sub, "tmp"),
	), usage.TotalBytes, "only the root's own files count outside cur and new")
}

func TestScanMailbox_MessageDirectoryEntries(t *testing.T) {
	root := t.TempDir()
	newMaildir(t, root)
	writeFile(t, filepath.Join(root, "cur", "msg"), 600)
	// Directories below cur are neither messages nor scanned.
	writeFile(t, filepath.Join(root, "cur", "stray", "inner"), 6000)

	warning := filepath.Join(t.TempDir(), "warning.txt")
	writeFile(t, warning, 1200)
	require.NoError(t, os.Symlink(warning, filepath.Join(root, "new", "1.1.softquota-warning")))

	usage, err := ScanMailbox(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), usage.FileCount, "the warning link counts as a message")
	assert.Equal(t, allocated(t,
		root,
		filepath.Join(root, "cur"),
		filepath.Join(root, "cur", "msg"),
		filepath.Join(root, "new"),
		warning,
		filepath.Join(root, "tmp"),
	), usage.TotalBytes)
}

func TestScanMailbox_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := ScanMailbox(context.Background(), filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.ErrorIs(t, err, consts.ErrMailboxScan)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("dangling symlink in new", func(t *testing.T) {
		root := t.TempDir()
		newMaildir(t, root)
		require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "new", "link")))

		_, err := ScanMailbox(context.Background(), root)
		require.Error(t, err)
		assert.ErrorIs(t, err, consts.ErrMailboxScan)
		assert.Contains(t, err.Error(), "link")
	})

	t.Run("root is a file", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "file")
		writeFile(t, root, 10)

		_, err := ScanMailbox(context.Background(), root)
		require.Error(t, err)
		assert.ErrorIs(t, err, consts.ErrMailboxScan)
	})

	t.Run("cancelled context", func(t *testing.T) {
		root := t.TempDir()
		newMaildir(t, root)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ScanMailbox(ctx, root)
		require.Error(t, err)
		assert.ErrorIs(t, err, consts.ErrMailboxScan)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
