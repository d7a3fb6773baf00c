package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"

	"github.com/spf13/afero"
)

// Sequencer computes backup folder numbers under a base directory.
type Sequencer struct {
	fs      afero.Fs
	tag     string
	pattern *regexp.Regexp
}

// NewSequencer returns a sequencer for folders named <tag>_NNN.
func NewSequencer(fsys afero.Fs, tag string) *Sequencer {
	return &Sequencer{
		fs:      fsys,
		tag:     tag,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(tag) + `_(\d{3,})$`),
	}
}

// FolderName formats a sequence number, zero-padded to three digits.
func (s *Sequencer) FolderName(n int) string {
	return fmt.Sprintf("%s_%03d", s.tag, n)
}

// Parse extracts the sequence number from a folder name.
func (s *Sequencer) Parse(name string) (int, bool) {
	m := s.pattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Next returns one more than the highest existing folder number in dir, or 1
// when dir is absent or holds no matching folder. Files and names that do
// not match the tag pattern are ignored, so numbers past 999 keep counting up
// instead of wrapping.
func (s *Sequencer) Next(dir string) (int, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("scan backup directory %s: %w", dir, err)
	}
	highest := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if n, ok := s.Parse(entry.Name()); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
