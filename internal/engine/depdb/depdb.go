// Package depdb implements the dependency database: a line-oriented file
// stored next to an output target that caches the rule identity, tool and
// option checksums, and the dynamically discovered prerequisite paths.
//
// The file is read back line by line against what the rule expects. The
// first mismatch truncates the file at that point and switches the
// database to writing; every expectation from then on is an append. A
// blank line terminates a successfully written database; a missing
// terminator marks an interrupted write and invalidates the whole file.
package depdb

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/domain"
)

// State is the database result reported by Close.
type State uint8

const (
	// StateUnchanged means every expected line matched the stored data.
	StateUnchanged State = iota
	// StateModified means the database was (re)written.
	StateModified
)

// DB is an open dependency database. It is exclusively owned by the single
// worker holding the emitting target's lock.
type DB struct {
	path  string
	f     *os.File
	r     *bufio.Reader
	pos   int64 // start of the line about to be read
	mtime time.Time

	writing  bool
	modified bool
	closed   bool
}

// Open opens the database at path: in read mode if the file exists, is
// non-empty and carries the blank-line terminator, otherwise in write mode
// (truncating whatever was there).
func Open(path string) (*DB, error) {
	d := &DB{path: path}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	switch {
	case err == nil:
		st, serr := f.Stat()
		if serr != nil {
			_ = f.Close()
			return nil, zerr.With(zerr.Wrap(serr, "failed to stat depdb"), "path", path)
		}
		if st.Size() == 0 {
			d.f = f
			d.writing = true
			d.modified = true
			return d, nil
		}
		d.f = f
		d.mtime = st.ModTime()
		if terr := d.checkTerminator(st.Size()); terr != nil {
			_ = f.Close()
			return nil, terr
		}
		d.r = bufio.NewReader(f)
		return d, nil

	case os.IsNotExist(err):
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to create depdb"), "path", path)
		}
		d.f = f
		d.writing = true
		d.modified = true
		return d, nil

	default:
		return nil, zerr.With(zerr.Wrap(err, "failed to open depdb"), "path", path)
	}
}

// checkTerminator verifies the trailing blank line; without it the previous
// write was interrupted and the cached data cannot be trusted.
func (d *DB) checkTerminator(size int64) error {
	if size < 1 {
		return d.switchToWrite(0)
	}
	buf := make([]byte, 1)
	if _, err := d.f.ReadAt(buf, size-1); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read depdb terminator"), "path", d.path)
	}
	if buf[0] != '\n' {
		// Not even line-terminated; treat as interrupted.
		return d.switchToWrite(0)
	}
	if size >= 2 {
		if _, err := d.f.ReadAt(buf, size-2); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read depdb terminator"), "path", d.path)
		}
		if buf[0] == '\n' {
			if _, err := d.f.Seek(0, io.SeekStart); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to seek depdb"), "path", d.path)
			}
			return nil
		}
	}
	return d.switchToWrite(0)
}

// Reading reports whether the database is still being validated against
// its stored contents.
func (d *DB) Reading() bool { return !d.writing }

// Writing reports whether the database has switched to write mode.
func (d *DB) Writing() bool { return d.writing }

// Mtime returns the modification time the database had when opened
// (the zero time when the file was missing or empty; an interrupted file
// keeps its stored time although it opens in write mode).
func (d *DB) Mtime() time.Time { return d.mtime }

// More reports whether another stored line is available without consuming
// it. The terminating blank line does not count.
func (d *DB) More() bool {
	if d.writing {
		return false
	}
	b, err := d.r.Peek(1)
	if err != nil {
		return false
	}
	return b[0] != '\n'
}

// Read consumes and returns the next stored line. It returns ok=false at
// the terminator, at end of data, or in write mode.
func (d *DB) Read() (string, bool) {
	if d.writing {
		return "", false
	}
	line, err := d.readLine()
	if err != nil || line == "" {
		return "", false
	}
	return line, true
}

func (d *DB) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		// Unterminated trailing data: interrupted write.
		return "", err
	}
	d.pos += int64(len(line))
	return strings.TrimSuffix(line, "\n"), nil
}

// Expect compares line with the next stored line in read mode. On a match
// it advances and returns ("", true). On a mismatch it truncates the file
// at the start of the mismatched line, switches to write mode, appends
// line, and returns the offending old line for diagnostics. In write mode
// it simply appends.
func (d *DB) Expect(line string) (old string, matched bool, err error) {
	if !d.writing {
		start := d.pos
		stored, rerr := d.readLine()
		if rerr == nil && stored == line && stored != "" {
			return "", true, nil
		}
		if serr := d.switchToWrite(start); serr != nil {
			return "", false, serr
		}
		old = stored
	}
	if werr := d.write(line); werr != nil {
		return "", false, werr
	}
	return old, false, nil
}

// Write appends a line unconditionally, truncating any remaining cached
// data first.
func (d *DB) Write(line string) error {
	if !d.writing {
		if err := d.switchToWrite(d.pos); err != nil {
			return err
		}
	}
	return d.write(line)
}

func (d *DB) switchToWrite(at int64) error {
	if err := d.f.Truncate(at); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to truncate depdb"), "path", d.path)
	}
	if _, err := d.f.Seek(at, io.SeekStart); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to seek depdb"), "path", d.path)
	}
	d.writing = true
	d.modified = true
	d.r = nil
	return nil
}

func (d *DB) write(line string) error {
	if _, err := d.f.WriteString(line + "\n"); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write depdb"), "path", d.path)
	}
	return nil
}

// Touch updates the file's mtime without rewriting, asserting that the
// cached data remains valid past a source change.
func (d *DB) Touch() error {
	now := time.Now()
	if err := os.Chtimes(d.path, now, now); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to touch depdb"), "path", d.path)
	}
	d.mtime = now
	return nil
}

// Close finalises the database. In write mode it appends the blank
// terminator and syncs; in read mode a fully matched file is left alone.
func (d *DB) Close() (State, error) {
	if d.closed {
		return StateUnchanged, zerr.With(domain.ErrDepdbCorrupt, "path", d.path)
	}
	d.closed = true

	st := StateUnchanged
	if d.writing {
		st = StateModified
		if _, err := d.f.WriteString("\n"); err != nil {
			_ = d.f.Close()
			return st, zerr.With(zerr.Wrap(err, "failed to terminate depdb"), "path", d.path)
		}
		if err := d.f.Sync(); err != nil {
			_ = d.f.Close()
			return st, zerr.With(zerr.Wrap(err, "failed to sync depdb"), "path", d.path)
		}
	}
	if err := d.f.Close(); err != nil {
		return st, zerr.With(zerr.Wrap(err, "failed to close depdb"), "path", d.path)
	}
	if d.modified {
		st = StateModified
	}
	return st, nil
}
