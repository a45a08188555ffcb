package sqlite3

import "encoding/binary"

// Magic is the 16-byte constant every well-formed sqlite3 database file
// begins with.
const Magic = "SQLite format 3\x00"

// TextEncoding identifies the per-database text encoding declared in the
// header.
type TextEncoding uint32

const (
	_ TextEncoding = iota
	UTF8
	UTF16LE
	UTF16BE
)

func (e TextEncoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF16LE:
		return "UTF-16le"
	case UTF16BE:
		return "UTF-16be"
	default:
		return "unknown"
	}
}

// Header is the 100-byte database header found at offset 0 of page 1.
// see: https://www.sqlite.org/fileformat.html#the_database_header
type Header struct {
	PageSize       int
	Reserved       int // reserved bytes per page, subtracted from usable size
	PageCount      int
	FirstFreelist  int
	FreelistCount  int
	TextEncoding   TextEncoding
	SchemaFormat   int
	LibraryVersion int
}

// parseHeader decodes and validates the 100-byte database header found at
// the start of raw. raw must be at least 100 bytes.
func parseHeader(raw []byte, fileSize int64) (Header, error) {
	var h Header

	if len(raw) < 100 {
		return h, newErr(KindBadHeader, 0, -1, "header truncated: %d bytes", len(raw))
	}

	if string(raw[0:16]) != Magic {
		return h, newErr(KindBadHeader, 0, -1, "bad magic: not a SQLite database")
	}

	pageSize := int(binary.BigEndian.Uint16(raw[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return h, newErr(KindBadHeader, 0, -1, "illegal page size: %d", pageSize)
	}

	reserved := int(raw[20])
	if pageSize-reserved < 480 {
		return h, newErr(KindBadHeader, 0, -1, "usable page size below minimum: %d", pageSize-reserved)
	}

	maxFrac, minFrac, leafFrac := raw[21], raw[22], raw[23]
	if maxFrac != 64 || minFrac != 32 || leafFrac != 32 {
		return h, newErr(KindBadHeader, 0, -1, "invalid payload fractions")
	}

	enc := TextEncoding(binary.BigEndian.Uint32(raw[56:60]))
	if enc != UTF8 && enc != UTF16LE && enc != UTF16BE {
		return h, newErr(KindBadHeader, 0, -1, "unknown text encoding: %d", enc)
	}

	pageCount := int(binary.BigEndian.Uint32(raw[28:32]))
	if pageCount == 0 {
		pageCount = int((fileSize + int64(pageSize) - 1) / int64(pageSize))
	}

	h = Header{
		PageSize:       pageSize,
		Reserved:       reserved,
		PageCount:      pageCount,
		FirstFreelist:  int(binary.BigEndian.Uint32(raw[32:36])),
		FreelistCount:  int(binary.BigEndian.Uint32(raw[36:40])),
		TextEncoding:   enc,
		SchemaFormat:   int(binary.BigEndian.Uint32(raw[44:48])),
		LibraryVersion: int(binary.BigEndian.Uint32(raw[96:100])),
	}
	return h, nil
}

// Usable returns U, the usable page size (page size minus reserved bytes).
func (h Header) Usable() int { return h.PageSize - h.Reserved }
