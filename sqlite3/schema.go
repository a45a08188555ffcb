package sqlite3

import "strings"

// schemaRootPage is the well-known page holding the sqlite_schema table.
const schemaRootPage = 1

// Object describes one row of sqlite_schema: a table or index.
type Object struct {
	Type     string // "table" or "index"
	Name     string
	TblName  string
	RootPage int
	SQL      string
}

// readSchema walks sqlite_schema (rooted at page 1) and returns every
// table/index object it describes.
func readSchema(pager *Pager, hdr Header) ([]Object, error) {
	var objects []Object

	err := walkTable(pager, hdr, schemaRootPage, func(cell *leafCell) error {
		values, err := decodeRecord(cell.Payload)
		if err != nil {
			return err
		}
		if len(values) != 5 {
			return newErr(KindCorruption, schemaRootPage, -1, "sqlite_schema row has %d columns, want 5", len(values))
		}

		typ, err := values[0].AsText(hdr.TextEncoding)
		if err != nil {
			return err
		}
		name, err := values[1].AsText(hdr.TextEncoding)
		if err != nil {
			return err
		}
		tblName, err := values[2].AsText(hdr.TextEncoding)
		if err != nil {
			return err
		}
		root, err := values[3].AsInt64()
		if err != nil {
			return err
		}
		sqlText, err := values[4].AsText(hdr.TextEncoding)
		if err != nil {
			return err
		}

		objects = append(objects, Object{Type: typ, Name: name, TblName: tblName, RootPage: int(root), SQL: sqlText})
		return nil
	})

	return objects, err
}

// findTable locates the table named name in objects, returning NotFound if
// absent.
func findTable(objects []Object, name string) (Object, error) {
	for _, o := range objects {
		if o.Type == "table" && o.Name == name {
			return o, nil
		}
	}
	return Object{}, newErr(KindNotFound, -1, -1, "not found: %s", name)
}

// Column is a table column resolved from its CREATE TABLE statement.
type Column struct {
	Name     string
	Type     string   // as written in the schema, uppercased; empty if untyped
	Affinity Affinity // SQLite type affinity derived from Type
}

// Affinity is SQLite's column type affinity; see
// https://www.sqlite.org/datatype3.html#affinity
type Affinity int

const (
	AffinityBlob Affinity = iota
	AffinityText
	AffinityNumeric
	AffinityInteger
	AffinityReal
)

// parseColumns extracts the column-name (and declared-type) list from a
// CREATE TABLE statement, per spec.md §4.F: locate the first '(' in the
// statement, split its contents on top-level commas, skip table-level
// constraints, and take the first identifier of each remaining definition
// as the column name. The table name is not skipped first, so a quoted
// table name that itself contains '(' is not handled.
func parseColumns(sql string) ([]Column, error) {
	open := strings.IndexByte(sql, '(')
	if open < 0 {
		return nil, newErr(KindSchemaParse, -1, -1, "no column list found in: %s", truncate(sql))
	}

	close, err := matchParen(sql, open)
	if err != nil {
		return nil, err
	}

	defs := splitTopLevel(sql[open+1 : close])

	var cols []Column
	for _, def := range defs {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		ident, rest := firstIdentifier(def)
		if ident == "" {
			continue
		}

		if isTableConstraintKeyword(ident) {
			continue
		}

		typ := firstTypeToken(rest)
		cols = append(cols, Column{Name: ident, Type: strings.ToUpper(typ), Affinity: affinityOf(typ)})
	}

	if len(cols) == 0 {
		return nil, newErr(KindSchemaParse, -1, -1, "no columns parsed from: %s", truncate(sql))
	}

	return cols, nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}

// matchParen returns the index of the ')' matching the '(' at open,
// accounting for nesting depth.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, newErr(KindSchemaParse, -1, -1, "unbalanced parentheses in: %s", truncate(s))
}

// splitTopLevel splits s on commas at paren depth 0, ignoring commas inside
// nested parens or quoted identifiers/string literals.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// firstIdentifier extracts the first identifier from def (handling "x",
// `x`, [x] and bare identifiers) and returns it along with the remainder of
// def following the identifier.
func firstIdentifier(def string) (ident, rest string) {
	def = strings.TrimSpace(def)
	if def == "" {
		return "", ""
	}

	switch def[0] {
	case '"', '`':
		q := def[0]
		if end := strings.IndexByte(def[1:], q); end >= 0 {
			return def[1 : 1+end], def[2+end:]
		}
	case '[':
		if end := strings.IndexByte(def, ']'); end >= 0 {
			return def[1:end], def[end+1:]
		}
	}

	i := 0
	for i < len(def) && !isSpace(def[i]) {
		i++
	}
	return def[:i], def[i:]
}

// firstTypeToken returns the first whitespace-delimited token of rest, which
// is the declared type name (if any) following the column's identifier.
func firstTypeToken(rest string) string {
	rest = strings.TrimSpace(rest)
	i := 0
	for i < len(rest) && !isSpace(rest[i]) && rest[i] != '(' {
		i++
	}
	return rest[:i]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

var tableConstraintKeywords = map[string]bool{
	"CONSTRAINT": true, "PRIMARY": true, "UNIQUE": true, "CHECK": true, "FOREIGN": true,
}

func isTableConstraintKeyword(ident string) bool {
	return tableConstraintKeywords[strings.ToUpper(ident)]
}

// affinityOf derives a column's type affinity from its declared type name,
// following the rules in https://www.sqlite.org/datatype3.html#affinity.
func affinityOf(typ string) Affinity {
	t := strings.ToUpper(typ)
	switch {
	case t == "":
		return AffinityBlob
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT"):
		return AffinityText
	case strings.Contains(t, "BLOB"):
		return AffinityBlob
	case strings.Contains(t, "REAL") || strings.Contains(t, "FLOA") || strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}
