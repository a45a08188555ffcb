package sqlite3

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// The helpers in this file hand-assemble a minimal, valid sqlite3 database
// file byte-for-byte, since no binary fixtures ship with this module. They
// exist only to give the decode path something real to read.

// encodeVarint is the inverse of ReadVarint: 1-8 bytes of standard base-128
// big-endian 7-bit groups for values below 2^56, and the 9-byte special form
// above that (8 continuation bytes carrying the high 56 bits, a 9th byte
// carrying the low 8 bits raw) matching varint.go:30-35.
func encodeVarint(v uint64) []byte {
	if v <= 0x7f {
		return []byte{byte(v)}
	}

	if v < 1<<56 {
		var groups []byte
		for v > 0 {
			groups = append(groups, byte(v&0x7f))
			v >>= 7
		}
		// groups is little-endian 7-bit chunks; reverse into big-endian order.
		out := make([]byte, len(groups))
		for i, b := range groups {
			out[len(groups)-1-i] = b
		}
		for i := 0; i < len(out)-1; i++ {
			out[i] |= 0x80
		}
		return out
	}

	high := v >> 8
	out := make([]byte, 9)
	for i := 7; i >= 0; i-- {
		out[i] = byte(high&0x7f) | 0x80
		high >>= 7
	}
	out[8] = byte(v)
	return out
}

func encodeInt(v int64) ([]byte, uint64) {
	switch {
	case v >= -128 && v <= 127:
		return []byte{byte(v)}, 1
	case v >= -32768 && v <= 32767:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b, 2
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b, 6
	}
}

// buildRecord encodes vals (nil, int64, string, or []byte) as a sqlite
// record body: header-length varint, serial-type varints, then field bytes.
func buildRecord(vals ...interface{}) []byte {
	serials := make([]uint64, len(vals))
	bodies := make([][]byte, len(vals))

	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			serials[i] = 0
		case int64:
			b, s := encodeInt(x)
			bodies[i] = b
			serials[i] = s
		case string:
			bodies[i] = []byte(x)
			serials[i] = uint64(13 + 2*len(x))
		case []byte:
			bodies[i] = x
			serials[i] = uint64(12 + 2*len(x))
		}
	}

	var serialBytes []byte
	for _, s := range serials {
		serialBytes = append(serialBytes, encodeVarint(s)...)
	}

	hlen := len(serialBytes) + 1
	var header []byte
	for {
		header = append(encodeVarint(uint64(hlen)), serialBytes...)
		if len(header) == hlen {
			break
		}
		hlen = len(header)
	}

	var body []byte
	for _, b := range bodies {
		body = append(body, b...)
	}
	return append(header, body...)
}

// leafCellBytes encodes one table-leaf cell (no overflow): payload size,
// rowid, payload.
func leafCellBytes(rowid int64, payload []byte) []byte {
	var out []byte
	out = append(out, encodeVarint(uint64(len(payload)))...)
	out = append(out, encodeVarint(uint64(rowid))...)
	out = append(out, payload...)
	return out
}

// writeLeafPage lays cells out on a table-leaf page starting at headerAt,
// growing cell content backward from the end of the page per the b-tree
// page format.
func writeLeafPage(buf []byte, headerAt, pageSize int, cells [][]byte) {
	buf[headerAt] = pageTableLeaf
	binary.BigEndian.PutUint16(buf[headerAt+1:headerAt+3], 0) // no freeblocks
	binary.BigEndian.PutUint16(buf[headerAt+3:headerAt+5], uint16(len(cells)))

	cellPtrAt := headerAt + 8
	end := pageSize
	ptrs := make([]int, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		end -= len(cells[i])
		copy(buf[end:], cells[i])
		ptrs[i] = end
	}

	binary.BigEndian.PutUint16(buf[headerAt+5:headerAt+7], uint16(end))
	buf[headerAt+7] = 0 // no fragmented bytes
	for i, p := range ptrs {
		binary.BigEndian.PutUint16(buf[cellPtrAt+2*i:cellPtrAt+2*i+2], uint16(p))
	}
}

func writeHeader(buf []byte, pageSize, pageCount int) {
	copy(buf[0:16], Magic)
	binary.BigEndian.PutUint16(buf[16:18], uint16(pageSize))
	buf[18], buf[19] = 1, 1
	buf[20] = 0 // reserved
	buf[21], buf[22], buf[23] = 64, 32, 32
	binary.BigEndian.PutUint32(buf[28:32], uint32(pageCount))
	binary.BigEndian.PutUint32(buf[44:48], 4) // schema format
	binary.BigEndian.PutUint32(buf[56:60], uint32(UTF8))
	binary.BigEndian.PutUint32(buf[96:100], 3045000)
}

// buildWidgetsDB assembles a 2-page, page-size-512 database: page 1 holds
// sqlite_schema with one table "widgets" (columns id INTEGER, name TEXT),
// rootpage 2; page 2 holds that table's rows.
func buildWidgetsDB(t *testing.T, rows []struct {
	Rowid int64
	ID    int64
	Name  string
}) string {
	t.Helper()

	const pageSize = 512
	const pageCount = 2
	buf := make([]byte, pageSize*pageCount)

	writeHeader(buf, pageSize, pageCount)

	createTable := "CREATE TABLE widgets (id INTEGER, name TEXT)"
	schemaRecord := buildRecord("table", "widgets", "widgets", int64(2), createTable)
	schemaCell := leafCellBytes(1, schemaRecord)
	writeLeafPage(buf, 100, pageSize, [][]byte{schemaCell})

	var dataCells [][]byte
	for _, r := range rows {
		rec := buildRecord(r.ID, r.Name)
		dataCells = append(dataCells, leafCellBytes(r.Rowid, rec))
	}
	writeLeafPage(buf[pageSize:], 0, pageSize, dataCells)

	path := t.TempDir() + "/widgets.db"
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

// leafCellOverflowBytes encodes one table-leaf cell whose payload spills to
// an overflow chain: payload size, rowid, the local portion, then the
// 4-byte pointer to the first overflow page.
func leafCellOverflowBytes(rowid int64, totalSize int, local []byte, firstOverflowPage int) []byte {
	var out []byte
	out = append(out, encodeVarint(uint64(totalSize))...)
	out = append(out, encodeVarint(uint64(rowid))...)
	out = append(out, local...)
	ptr := make([]byte, 4)
	binary.BigEndian.PutUint32(ptr, uint32(firstOverflowPage))
	return append(out, ptr...)
}

// writeOverflowChain lays tail out across pages starting at firstPage (each
// usable-4 bytes of content, plus a leading 4-byte next-page pointer; 0 in
// the last page), writing into full-file buffer buf.
func writeOverflowChain(buf []byte, pageSize, firstPage int, tail []byte) {
	chunk := pageSize - 4
	page := firstPage
	for len(tail) > 0 {
		n := chunk
		if n > len(tail) {
			n = len(tail)
		}

		off := (page - 1) * pageSize
		next := 0
		if n < len(tail) {
			next = page + 1
		}
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(next))
		copy(buf[off+4:], tail[:n])

		tail = tail[n:]
		page++
	}
}

// buildLargeTextDB assembles a 4096-byte-page database with a single table
// "blobby" (column s TEXT) holding one row whose TEXT value is text,
// spilling across an overflow chain per spec.md §3 and exercising spec.md
// §8 scenario #3 end to end through DB.Scan.
func buildLargeTextDB(t *testing.T, text string) string {
	t.Helper()

	const pageSize = 4096
	const tableLeafPage = 2
	const firstOverflowPage = 3

	rec := buildRecord(text)
	usable := pageSize
	_, local, overflow := spillSizes(usable, len(rec))
	require.Greater(t, overflow, 0, "test fixture must actually spill to overflow")

	overflowPages := (overflow + (pageSize - 4) - 1) / (pageSize - 4)
	pageCount := tableLeafPage + overflowPages

	buf := make([]byte, pageSize*pageCount)
	writeHeader(buf, pageSize, pageCount)

	createTable := "CREATE TABLE blobby (s TEXT)"
	schemaRecord := buildRecord("table", "blobby", "blobby", int64(tableLeafPage), createTable)
	writeLeafPage(buf, 100, pageSize, [][]byte{leafCellBytes(1, schemaRecord)})

	cell := leafCellOverflowBytes(1, len(rec), rec[:local], firstOverflowPage)
	leafOff := (tableLeafPage - 1) * pageSize
	writeLeafPage(buf[leafOff:leafOff+pageSize], 0, pageSize, [][]byte{cell})

	writeOverflowChain(buf, pageSize, firstOverflowPage, rec[local:])

	path := t.TempDir() + "/large-text.db"
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}
