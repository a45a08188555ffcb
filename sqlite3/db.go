package sqlite3

import (
	"os"

	"github.com/sirupsen/logrus"
)

// DB is an open handle onto a sqlite3 database file, read directly from its
// on-disk representation. It owns the file handle and page cache for the
// duration of a dump and is not safe for concurrent use by more than one
// goroutine (see spec.md §5).
type DB struct {
	Header Header
	pager  *Pager
	file   *os.File

	schema []Object // lazily populated by Schema()
}

// Open opens path as a sqlite3 database file for read-only, bypass-the-
// engine access.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path + "-wal"); err == nil {
		logrus.WithField("path", path).Warn("wal sidecar present; dumping main file only")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(err, KindIO, -1, -1, "open %s", path)
	}

	db, err := openFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return db, nil
}

func openFile(f *os.File) (*DB, error) {
	raw := make([]byte, 100)
	if _, err := f.ReadAt(raw, 0); err != nil {
		return nil, wrapErr(err, KindIO, 0, -1, "read database header")
	}

	info, err := f.Stat()
	if err != nil {
		return nil, wrapErr(err, KindIO, -1, -1, "stat database size")
	}
	size := info.Size()

	hdr, err := parseHeader(raw, size)
	if err != nil {
		return nil, err
	}

	pager, err := NewPager(f, hdr)
	if err != nil {
		return nil, err
	}

	return &DB{Header: hdr, pager: pager, file: f}, nil
}

// Close closes the underlying file handle and releases any mmap backing.
func (db *DB) Close() error {
	if err := db.pager.Close(); err != nil {
		_ = db.file.Close()
		return err
	}
	return db.file.Close()
}

// PageSize returns the database page size in bytes.
func (db *DB) PageSize() int { return db.Header.PageSize }

// Encoding returns the database's declared text encoding.
func (db *DB) Encoding() TextEncoding { return db.Header.TextEncoding }

// Schema returns every table/index described by sqlite_schema, reading it
// once and caching the result for the lifetime of the DB.
func (db *DB) Schema() ([]Object, error) {
	if db.schema == nil {
		objects, err := readSchema(db.pager, db.Header)
		if err != nil {
			return nil, err
		}
		db.schema = objects
	}
	return db.schema, nil
}

// Columns resolves table's column list by parsing its CREATE TABLE
// statement out of sqlite_schema.
func (db *DB) Columns(table string) ([]Column, error) {
	objects, err := db.Schema()
	if err != nil {
		return nil, err
	}

	obj, err := findTable(objects, table)
	if err != nil {
		return nil, err
	}

	return parseColumns(obj.SQL)
}

// Row is one decoded table row: its rowid and column values in schema
// order. Values borrow from page memory — see spec.md §5's lifetime note:
// a Row must be fully consumed before RowIter.Next is called again.
type Row struct {
	Rowid  int64
	Values []Value
}

// RowIter yields the rows of a table in rowid-ascending order. It is
// driven synchronously by a single consumer: each Next call resumes the
// underlying explicit-stack b-tree walk just far enough to decode one more
// row (spec.md §5 — single-threaded, pull-based, no background I/O).
type RowIter struct {
	columns []Column
	walker  *walker
	err     error
	closed  bool
}

// Scan resolves table's root page and columns, then returns an iterator
// over its rows in primary-key (rowid) order.
func (db *DB) Scan(table string) (*RowIter, error) {
	objects, err := db.Schema()
	if err != nil {
		return nil, err
	}

	obj, err := findTable(objects, table)
	if err != nil {
		return nil, err
	}

	cols, err := parseColumns(obj.SQL)
	if err != nil {
		return nil, err
	}

	w, err := newWalker(db.pager, db.Header, obj.RootPage)
	if err != nil {
		return nil, err
	}

	return &RowIter{columns: cols, walker: w}, nil
}

// Columns returns the resolved column list for this scan.
func (it *RowIter) Columns() []Column { return it.columns }

// Next advances the iterator, returning false when the scan is exhausted or
// failed; call Err after a false return to distinguish the two. The
// previous Row's Values must not be retained past this call — they may
// borrow from a page buffer the next step evicts or overwrites.
func (it *RowIter) Next() (Row, bool) {
	if it.closed || it.err != nil {
		return Row{}, false
	}

	cell, done, err := it.walker.step()
	if err != nil {
		it.err = err
		return Row{}, false
	}
	if done {
		return Row{}, false
	}

	values, err := decodeRecord(cell.Payload)
	if err != nil {
		it.err = err
		return Row{}, false
	}

	return Row{Rowid: cell.Rowid, Values: values}, true
}

// Err returns the error that stopped iteration, if any.
func (it *RowIter) Err() error { return it.err }

// Close marks the iterator as done; safe to call at any point, including
// after exhaustion. Since the underlying file is read-only there is
// nothing to roll back — cancellation just stops driving the walker.
func (it *RowIter) Close() { it.closed = true }
