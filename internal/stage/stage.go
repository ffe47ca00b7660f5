// Package stage implements txed's staged-write primitive: write desired
// bytes to a sibling temp file and expose a Commit operation that performs
// the atomic same-directory rename, using google/renameio/v2 for the
// fsync-before-rename durability a hand-rolled create/chmod/rename sequence
// would lack.
package stage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/xerrors"
)

// WriteOptions configures a single staged write.
type WriteOptions struct {
	Permissions model.PermissionMode
	FixedMode   os.FileMode
	Symlinks    model.SymlinkMode

	// Backup, if true, copies the existing target's bytes to BackupPath
	// (or "<target>.bak" if BackupPath is empty) before staging the write.
	Backup     bool
	BackupPath string
}

// StagedEntry owns an opened-but-not-yet-renamed temporary file in the
// target's parent directory. Exactly one of Commit or Drop must be called.
type StagedEntry struct {
	target     string
	pending    *renameio.PendingFile
	backupPath string
	done       bool
}

// Target returns the resolved path this entry will replace on Commit.
func (s *StagedEntry) Target() string {
	return s.target
}

// BackupPath returns the sibling backup copy's path, or "" if none was made.
func (s *StagedEntry) BackupPath() string {
	return s.backupPath
}

// Stage writes data to a sibling temp file of target (resolving symlinks
// first when options.Symlinks == SymlinkFollow, so the temp file lands in
// the resolved target's parent directory) without making it visible yet.
func Stage(target string, data []byte, opts WriteOptions) (*StagedEntry, error) {
	resolved, err := resolveTarget(target, opts.Symlinks)
	if err != nil {
		return nil, err
	}

	createdBackup := ""
	if opts.Backup {
		backupPath := opts.BackupPath
		if backupPath == "" {
			backupPath = resolved + ".bak"
		}
		if err := copyExisting(resolved, backupPath); err != nil {
			return nil, err
		}
		if _, err := os.Stat(resolved); err == nil {
			createdBackup = backupPath
		}
	}

	mode, err := resolveMode(resolved, opts)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(resolved)
	pf, err := renameio.NewPendingFile(resolved, renameio.WithTempDir(dir), renameio.WithPermissions(mode))
	if err != nil {
		return nil, xerrors.IOError(resolved, "failed to create staged temp file", err)
	}

	if len(data) > 0 {
		if _, err := pf.Write(data); err != nil {
			pf.Cleanup()
			return nil, xerrors.IOError(resolved, "failed to write staged content", err)
		}
	}

	return &StagedEntry{target: resolved, pending: pf, backupPath: createdBackup}, nil
}

// Commit atomically renames the staged temp file over the target. The
// entry must not be used again afterward.
func (s *StagedEntry) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		return xerrors.IOError(s.target, "failed to commit staged write", err)
	}
	return nil
}

// Drop discards the staged write, removing its temp file.
func (s *StagedEntry) Drop() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.pending.Cleanup()
}

func resolveTarget(target string, mode model.SymlinkMode) (string, error) {
	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return target, nil
		}
		return "", xerrors.WrapIO(target, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return target, nil
	}
	switch mode {
	case model.SymlinkFollow:
		resolved, err := filepath.EvalSymlinks(target)
		if err != nil {
			return "", xerrors.IOError(target, "failed to resolve symlink", err)
		}
		return resolved, nil
	default:
		return target, nil
	}
}

func resolveMode(resolved string, opts WriteOptions) (os.FileMode, error) {
	if opts.Permissions == model.PermissionFixed {
		return opts.FixedMode, nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return 0o644, nil
		}
		return 0, xerrors.WrapIO(resolved, err)
	}
	return info.Mode().Perm(), nil
}

func copyExisting(path, backupPath string) error {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.IOError(path, "failed to open file for backup", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return xerrors.IOError(backupPath, "failed to create backup file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(backupPath)
		return xerrors.IOError(backupPath, "failed to copy backup content", err)
	}

	if info, err := src.Stat(); err == nil {
		_ = os.Chmod(backupPath, info.Mode())
	}
	return nil
}
