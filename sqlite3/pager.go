package sqlite3

import (
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
)

// pageCacheSize bounds the fallback LRU cache. Scans are sequential, so a
// handful of resident pages suffices to keep interior-node locality warm.
const pageCacheSize = 8

// Pager maps a 1-based page number to an immutable byte slice of page-size
// length, reading from the file lazily. It prefers a memory-mapped backing
// for a zero-copy read path; if mmap is unavailable (e.g. the input is a
// pipe, or the platform refuses it) it falls back to buffered reads through
// a small bounded LRU.
//
// Page 1's returned slice is the *full* page, header included — callers
// parsing the b-tree header on page 1 must skip the first 100 bytes
// themselves (see btree.go's parseNode).
type Pager struct {
	pageSize int
	pages    int

	mapped mmap.MMap // non-nil when the zero-copy path is active
	file   *os.File  // retained for Close regardless of path
	rs     io.ReaderAt
	cache  *lru.Cache[int, []byte]
}

// NewPager sets up the page-level reader described by hdr over the already
// opened file.
func NewPager(file *os.File, hdr Header) (*Pager, error) {
	p := &Pager{pageSize: hdr.PageSize, pages: hdr.PageCount, file: file}

	if m, err := mmap.Map(file, mmap.RDONLY, 0); err == nil {
		p.mapped = m
		logrus.WithField("pages", p.pages).Debug("pager: mmap backing active")
		return p, nil
	} else {
		logrus.WithError(err).Debug("pager: mmap unavailable, falling back to buffered LRU")
	}

	cache, err := lru.New[int, []byte](pageCacheSize)
	if err != nil {
		return nil, err
	}
	p.cache = cache
	p.rs = file
	return p, nil
}

// Page returns the raw bytes of page n (1-based), of exactly PageSize()
// length. The returned slice must not be retained past the next unrelated
// Page call when the buffered fallback path is active, since an evicted
// cache entry may be reused; the mmap path has no such restriction.
func (p *Pager) Page(n int) ([]byte, error) {
	if n < 1 || n > p.pages {
		return nil, newErr(KindCorruption, n, -1, "page out of range (1..%d)", p.pages)
	}

	offset := int64(n-1) * int64(p.pageSize)

	if p.mapped != nil {
		end := offset + int64(p.pageSize)
		if end > int64(len(p.mapped)) {
			return nil, newErr(KindCorruption, n, -1, "page extends past end of file")
		}
		return p.mapped[offset:end], nil
	}

	if buf, ok := p.cache.Get(n); ok {
		return buf, nil
	}

	buf := make([]byte, p.pageSize)
	if _, err := p.rs.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, wrapErr(err, KindIO, n, -1, "read page")
	}

	p.cache.Add(n, buf)
	return buf, nil
}

// PageSize returns the configured page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// PageCount returns the number of pages addressable by this pager.
func (p *Pager) PageCount() int { return p.pages }

// Close releases the mmap (if any); the underlying file handle is owned and
// closed by DB.Close.
func (p *Pager) Close() error {
	if p.mapped != nil {
		return p.mapped.Unmap()
	}
	return nil
}
