package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jopamo/txed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageCommitReplacesContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	entry, err := Stage(target, []byte("new"), WriteOptions{Permissions: model.PermissionPreserve})
	require.NoError(t, err)

	// Target must be unchanged until Commit.
	before, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(before))

	require.NoError(t, entry.Commit())

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(after))
}

func TestStagePreservesExistingMode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	entry, err := Stage(target, []byte("new"), WriteOptions{Permissions: model.PermissionPreserve})
	require.NoError(t, err)
	require.NoError(t, entry.Commit())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStageFixedMode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	entry, err := Stage(target, []byte("new"), WriteOptions{
		Permissions: model.PermissionFixed,
		FixedMode:   0o644,
	})
	require.NoError(t, err)
	require.NoError(t, entry.Commit())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestStageDropLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	entry, err := Stage(target, []byte("new"), WriteOptions{Permissions: model.PermissionPreserve})
	require.NoError(t, err)
	require.NoError(t, entry.Drop())

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(after))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStageWithBackupCopiesOriginal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	entry, err := Stage(target, []byte("replaced"), WriteOptions{
		Permissions: model.PermissionPreserve,
		Backup:      true,
	})
	require.NoError(t, err)
	require.NoError(t, entry.Commit())

	backup, err := os.ReadFile(target + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "original", string(backup))

	current, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(current))
}

func TestStageNewFileNoBackup(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "new.txt")

	entry, err := Stage(target, []byte("hello"), WriteOptions{
		Permissions: model.PermissionPreserve,
		Backup:      true,
	})
	require.NoError(t, err)
	require.NoError(t, entry.Commit())

	_, err = os.Stat(target + ".bak")
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}
