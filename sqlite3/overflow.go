package sqlite3

import "encoding/binary"

// readOverflow reassembles the tail of a spilled payload by walking the
// overflow chain starting at page, collecting up to size bytes. Each
// overflow page carries a 4-byte big-endian "next page" pointer in its
// first 4 bytes, followed by up to usable-4 bytes of payload; the final
// page in the chain has a next-pointer of 0.
//
// see: https://www.sqlite.org/fileformat.html#ovflpgs
func readOverflow(pager *Pager, page int, usable, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	visited := make(map[int]bool)

	for page != 0 && len(out) < size {
		if visited[page] {
			return nil, newErr(KindCorruption, page, -1, "cycle in overflow chain")
		}
		visited[page] = true

		buf, err := pager.Page(page)
		if err != nil {
			return nil, err
		}
		if len(buf) < 4 {
			return nil, newErr(KindCorruption, page, -1, "overflow page too small")
		}

		next := int(binary.BigEndian.Uint32(buf[0:4]))

		remaining := size - len(out)
		chunk := usable - 4
		if chunk > remaining {
			chunk = remaining
		}
		if 4+chunk > len(buf) {
			return nil, newErr(KindCorruption, page, -1, "overflow page shorter than usable size")
		}

		out = append(out, buf[4:4+chunk]...)
		page = next
	}

	if len(out) != size {
		return nil, newErr(KindCorruption, page, -1, "overflow chain ended early: got %d want %d", len(out), size)
	}

	return out, nil
}
