package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"hoard/internal/logging"
)

// Copier recursively copies a directory tree, merging into an existing
// destination.
type Copier interface {
	Copy(src, dst string) (CopyReport, error)
}

// CopyFailure records one entry that could not be copied.
type CopyFailure struct {
	Path string
	Err  error
}

func (f CopyFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// CopyReport summarizes a copy run.
type CopyReport struct {
	Files    int
	Dirs     int
	Bytes    int64
	Failures []CopyFailure
}

// Complete reports whether every entry was copied.
func (r CopyReport) Complete() bool {
	return len(r.Failures) == 0
}

// TreeCopier walks the source tree on an afero filesystem. Entries that fail
// are recorded and skipped; the walk always continues. Mode, timestamps, and
// ownership are applied best-effort since FAT targets reject most of them.
type TreeCopier struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewTreeCopier returns a copier over fsys.
func NewTreeCopier(fsys afero.Fs, logger *slog.Logger) *TreeCopier {
	return &TreeCopier{fs: fsys, logger: logging.NewComponentLogger(logger, "copier")}
}

// Copy implements Copier. The returned error is non-nil only when the source
// root itself cannot be read.
func (c *TreeCopier) Copy(src, dst string) (CopyReport, error) {
	var report CopyReport

	rootInfo, err := c.fs.Stat(src)
	if err != nil {
		return report, fmt.Errorf("stat source %s: %w", src, err)
	}
	if !rootInfo.IsDir() {
		return report, fmt.Errorf("source %s is not a directory", src)
	}
	if err := c.fs.MkdirAll(dst, rootInfo.Mode().Perm()|0o700); err != nil {
		return report, fmt.Errorf("create destination %s: %w", dst, err)
	}

	type dirMeta struct {
		path string
		info os.FileInfo
	}
	var dirs []dirMeta

	walkErr := afero.Walk(c.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			c.fail(&report, path, err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			c.fail(&report, path, err)
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			if rel != "." {
				if err := c.fs.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
					c.fail(&report, path, err)
					return filepath.SkipDir
				}
				report.Dirs++
			}
			dirs = append(dirs, dirMeta{path: target, info: info})
		case info.Mode()&os.ModeSymlink != 0:
			if err := c.copySymlink(path, target); err != nil {
				c.fail(&report, path, err)
				return nil
			}
			report.Files++
		case info.Mode().IsRegular():
			n, err := c.copyFile(path, target, info)
			if err != nil {
				c.fail(&report, path, err)
				return nil
			}
			report.Files++
			report.Bytes += n
		default:
			c.logger.Debug("skipping special file", logging.String("path", path))
		}
		return nil
	})
	if walkErr != nil {
		c.fail(&report, src, walkErr)
	}

	// Directory times are applied last so writing children does not bump them.
	for i := len(dirs) - 1; i >= 0; i-- {
		c.applyMetadata(dirs[i].path, dirs[i].info)
	}
	return report, nil
}

func (c *TreeCopier) copyFile(src, dst string, info os.FileInfo) (int64, error) {
	in, err := c.fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := c.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	c.applyMetadata(dst, info)
	return n, nil
}

func (c *TreeCopier) copySymlink(src, dst string) error {
	reader, ok := c.fs.(afero.LinkReader)
	linker, ok2 := c.fs.(afero.Linker)
	if !ok || !ok2 {
		return errors.New("symlinks not supported by filesystem")
	}
	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	_ = c.fs.Remove(dst)
	return linker.SymlinkIfPossible(target, dst)
}

func (c *TreeCopier) applyMetadata(path string, info os.FileInfo) {
	if err := c.fs.Chmod(path, info.Mode().Perm()); err != nil {
		c.logger.Debug("mode not preserved", logging.String("path", path), logging.Error(err))
	}
	if err := c.fs.Chtimes(path, info.ModTime(), info.ModTime()); err != nil {
		c.logger.Debug("timestamps not preserved", logging.String("path", path), logging.Error(err))
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if err := c.fs.Chown(path, int(stat.Uid), int(stat.Gid)); err != nil {
			c.logger.Debug("ownership not preserved", logging.String("path", path), logging.Error(err))
		}
	}
}

func (c *TreeCopier) fail(report *CopyReport, path string, err error) {
	report.Failures = append(report.Failures, CopyFailure{Path: path, Err: err})
	logging.WarnWithContext(c.logger, "entry not copied", "copy_entry_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the floppy may have bad sectors; try cleaning the disk or drive"),
		logging.String(logging.FieldImpact, "backup folder is missing this entry"),
	)
}
