// Package records reads and writes comma-delimited flat files that start with
// a header row.
//
// There is no schema engine: callers describe each file with a [Layout] and
// get plain string rows back. Loading is lenient by default. Rows with too
// few fields are dropped and counted in [Table.Skipped] instead of failing.
//
// Writes never truncate a file in place. [RewriteAll] and [Batch] write a
// temporary sibling file and rename it over the target, so a failed write
// leaves the previous content untouched.
package records

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Delimiter separates fields on a line.
const Delimiter = ","

var (
	// ErrMalformedRow is returned by strict loads for rows with too few fields.
	ErrMalformedRow = errors.New("records: malformed row")

	// ErrEmbeddedDelimiter is returned when a field to be written contains the
	// delimiter or a line break.
	ErrEmbeddedDelimiter = errors.New("records: field contains delimiter or line break")
)

// Layout describes one file.
type Layout struct {
	// Header is written as the first line of new or rewritten files.
	Header []string
	// MinColumns is the minimum field count of a valid row.
	MinColumns int
	// Greedy lets the last header column absorb any further delimiters, so
	// free text such as a review may contain commas.
	Greedy bool
	// Strict turns a short row into ErrMalformedRow instead of skipping it.
	Strict bool
}

// Table is the result of a load.
type Table struct {
	Rows    [][]string
	Skipped int
}

// LoadAll reads every data row of the file at path. A missing file yields an
// empty table.
func LoadAll(path string, layout Layout) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("records: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	table := &Table{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := layout.split(line)
		if len(fields) < layout.MinColumns {
			if layout.Strict {
				return nil, fmt.Errorf("%w: %s line %d has %d fields, want %d",
					ErrMalformedRow, path, lineNo, len(fields), layout.MinColumns)
			}
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("records: read %s: %w", path, err)
	}
	return table, nil
}

// AppendRow adds one row to the end of the file, creating the file (and its
// directory) with a header line when absent. A missing trailing newline is
// repaired before the row is written.
func AppendRow(path string, layout Layout, row []string) error {
	line, err := layout.encode(row)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("records: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("records: stat %s: %w", path, err)
	}

	var sb strings.Builder
	if info.Size() == 0 {
		sb.WriteString(strings.Join(layout.Header, Delimiter))
		sb.WriteByte('\n')
	} else {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return fmt.Errorf("records: read %s: %w", path, err)
		}
		if last[0] != '\n' {
			sb.WriteByte('\n')
		}
	}
	sb.WriteString(line)
	sb.WriteByte('\n')

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("records: append %s: %w", path, err)
	}
	return nil
}

// RewriteAll replaces the file content with header plus rows.
func RewriteAll(path string, layout Layout, rows [][]string) error {
	var b Batch
	if err := b.Rewrite(path, layout, rows); err != nil {
		return err
	}
	return b.Commit()
}

func (l Layout) split(line string) []string {
	if l.Greedy && len(l.Header) > 0 {
		return strings.SplitN(line, Delimiter, len(l.Header))
	}
	return strings.Split(line, Delimiter)
}

func (l Layout) encode(row []string) (string, error) {
	for i, field := range row {
		if strings.ContainsAny(field, "\r\n") {
			return "", fmt.Errorf("%w: %q", ErrEmbeddedDelimiter, field)
		}
		lastGreedy := l.Greedy && i == len(row)-1 && i == len(l.Header)-1
		if !lastGreedy && strings.Contains(field, Delimiter) {
			return "", fmt.Errorf("%w: %q", ErrEmbeddedDelimiter, field)
		}
	}
	return strings.Join(row, Delimiter), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("records: create dir %s: %w", dir, err)
	}
	return nil
}
