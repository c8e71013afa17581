package records

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Batch stages rewrites of several files and commits them together.
//
// Staging writes each new file next to its target. Nothing visible changes
// until Commit renames the staged files into place, in staging order.
// A Batch is not safe for concurrent use.
type Batch struct {
	staged []stagedFile
}

type stagedFile struct {
	target string
	temp   string
}

// CommitError reports a commit that stopped partway through.
type CommitError struct {
	Committed []string
	Pending   []string
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("records: commit stopped after %d of %d files (pending %s): %v",
		len(e.Committed), len(e.Committed)+len(e.Pending), strings.Join(e.Pending, ", "), e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Rewrite stages the full new content of path. On error nothing is staged
// for path; files staged earlier stay staged.
func (b *Batch) Rewrite(path string, layout Layout, rows [][]string) (err error) {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line, err := layout.encode(row)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("records: stage %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	w.WriteString(strings.Join(layout.Header, Delimiter))
	w.WriteByte('\n')
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("records: stage %s: %w", path, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("records: sync %s: %w", path, err)
	}
	if err = f.Chmod(0o644); err != nil {
		return fmt.Errorf("records: chmod %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("records: close %s: %w", path, err)
	}

	b.staged = append(b.staged, stagedFile{target: path, temp: f.Name()})
	return nil
}

// Len returns the number of staged files.
func (b *Batch) Len() int { return len(b.staged) }

// Discard removes every staged file without touching the targets.
func (b *Batch) Discard() {
	for _, s := range b.staged {
		os.Remove(s.temp)
	}
	b.staged = nil
}

// Commit moves every staged file over its target. If a rename fails the
// remaining staged files are discarded and a *CommitError is returned.
func (b *Batch) Commit() error {
	defer func() { b.staged = nil }()

	committed := make([]string, 0, len(b.staged))
	for i, s := range b.staged {
		if err := os.Rename(s.temp, s.target); err != nil {
			pending := make([]string, 0, len(b.staged)-i)
			for _, rest := range b.staged[i:] {
				os.Remove(rest.temp)
				pending = append(pending, rest.target)
			}
			return &CommitError{Committed: committed, Pending: pending, Err: err}
		}
		committed = append(committed, s.target)
	}
	return nil
}

// IsPartialCommit reports whether err is a CommitError that already changed
// at least one file.
func IsPartialCommit(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce) && len(ce.Committed) > 0
}
