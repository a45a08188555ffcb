// Package parquetsink writes a scanned table to a Parquet file using a
// dynamically-built JSON schema (xitongsys/parquet-go's JSONWriter), since
// the column set and types aren't known until the source table's schema
// is resolved at runtime.
//
// BLOB columns are hex-encoded before being handed to the writer: the
// JSONWriter's dynamic-schema path round-trips records through JSON text,
// and arbitrary binary bytes are not representable as a JSON string
// without lossy transcoding. Hex keeps the value exact and ASCII-safe, at
// the cost of the column holding hex text rather than the table's raw
// bytes — the same trade-off csvsink makes, for the same reason.
package parquetsink

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/i64/sqlite3-dump/sqlite3"
)

// fieldType is the inferred Parquet physical type for one column.
type fieldType int

const (
	typeInt64 fieldType = iota
	typeDouble
	typeText
	typeBlob
)

func kindToFieldType(k sqlite3.ValueKind) fieldType {
	switch k {
	case sqlite3.KindInt:
		return typeInt64
	case sqlite3.KindFloat:
		return typeDouble
	case sqlite3.KindBlob:
		return typeBlob
	default:
		return typeText
	}
}

// affinityFallback seeds a column's type from its declared SQLite affinity,
// used only when every observed value in the column is NULL (so no
// first-non-null value exists to infer from).
func affinityFallback(a sqlite3.Affinity) fieldType {
	switch a {
	case sqlite3.AffinityInteger:
		return typeInt64
	case sqlite3.AffinityReal:
		return typeDouble
	case sqlite3.AffinityText:
		return typeText
	default:
		return typeBlob
	}
}

type fieldInfo struct {
	typ      fieldType
	nullable bool
}

// Stats summarizes a completed Write call for §6's progress reporting.
type Stats struct {
	Rows    int64
	Columns int
}

// Write infers table's Parquet schema (scanning it once), then scans it a
// second time to stream rows into a Parquet file at outPath, flushing a
// new row group every batchSize rows.
func Write(db *sqlite3.DB, table, outPath string, batchSize int) (Stats, error) {
	cols, infos, err := inferSchema(db, table)
	if err != nil {
		return Stats{}, err
	}

	schema := buildJSONSchema(cols, infos)

	fw, err := local.NewLocalFileWriter(outPath)
	if err != nil {
		return Stats{}, err
	}
	defer fw.Close()

	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		return Stats{}, err
	}

	it, err := db.Scan(table)
	if err != nil {
		return Stats{}, err
	}
	defer it.Close()

	enc := db.Encoding()
	var rows int64
	for {
		row, ok := it.Next()
		if !ok {
			break
		}

		rec, err := encodeRecord(cols, row, enc)
		if err != nil {
			return Stats{}, err
		}
		if err := pw.Write(rec); err != nil {
			return Stats{}, err
		}

		rows++
		if batchSize > 0 && rows%int64(batchSize) == 0 {
			if err := pw.Flush(true); err != nil {
				return Stats{}, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return Stats{}, err
	}

	if err := pw.WriteStop(); err != nil {
		return Stats{}, err
	}

	return Stats{Rows: rows, Columns: len(cols)}, nil
}

// inferSchema scans table once, determining each column's Parquet type
// from the first non-null value observed and whether any NULL occurred,
// per spec.md §6.
func inferSchema(db *sqlite3.DB, table string) ([]sqlite3.Column, []fieldInfo, error) {
	cols, err := db.Columns(table)
	if err != nil {
		return nil, nil, err
	}

	it, err := db.Scan(table)
	if err != nil {
		return nil, nil, err
	}
	defer it.Close()

	infos := make([]fieldInfo, len(cols))
	seen := make([]bool, len(cols))
	for i, c := range cols {
		infos[i].typ = affinityFallback(c.Affinity)
	}

	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		for i := range cols {
			if i >= len(row.Values) || row.Values[i].IsNull() {
				infos[i].nullable = true
				continue
			}
			if !seen[i] {
				infos[i].typ = kindToFieldType(row.Values[i].Kind)
				seen[i] = true
			}
		}
	}

	return cols, infos, it.Err()
}

// buildJSONSchema constructs the Tag-based JSON schema document
// xitongsys/parquet-go's JSONWriter expects.
func buildJSONSchema(cols []sqlite3.Column, infos []fieldInfo) string {
	var fields []string
	for i, c := range cols {
		var typ string
		switch infos[i].typ {
		case typeInt64:
			typ = "type=INT64"
		case typeDouble:
			typ = "type=DOUBLE"
		default: // text and (hex-encoded) blob both ride as UTF8 byte arrays
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		rep := "OPTIONAL"
		if !infos[i].nullable {
			rep = "REQUIRED"
		}
		fields = append(fields, fmt.Sprintf(`{"Tag":"name=%s, %s, repetitiontype=%s"}`, jsonIdent(c.Name), typ, rep))
	}

	return fmt.Sprintf(`{"Tag":"name=row, repetitiontype=REQUIRED","Fields":[%s]}`, strings.Join(fields, ","))
}

// jsonIdent strips characters that would break the Tag grammar out of a
// column name (SQLite identifiers are unrestricted; parquet-go's Tag
// parser is not).
func jsonIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ',' || r == '=' || r == '"' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeRecord renders one row as the JSON document shape the JSONWriter
// expects, applying each column's inferred encoding.
func encodeRecord(cols []sqlite3.Column, row sqlite3.Row, enc sqlite3.TextEncoding) (string, error) {
	var b strings.Builder
	b.WriteByte('{')

	for i, c := range cols {
		if i > 0 {
			b.WriteByte(',')
		}

		name, _ := json.Marshal(jsonIdent(c.Name))
		b.Write(name)
		b.WriteByte(':')

		if i >= len(row.Values) || row.Values[i].IsNull() {
			b.WriteString("null")
			continue
		}

		v := row.Values[i]
		switch v.Kind {
		case sqlite3.KindInt:
			n, err := v.AsInt64()
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.FormatInt(n, 10))

		case sqlite3.KindFloat:
			f, err := v.AsFloat64()
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))

		case sqlite3.KindText:
			s, err := v.AsText(enc)
			if err != nil {
				return "", err
			}
			enc, _ := json.Marshal(s)
			b.Write(enc)

		case sqlite3.KindBlob:
			raw, err := v.AsBytes()
			if err != nil {
				return "", err
			}
			enc, _ := json.Marshal(hex.EncodeToString(raw))
			b.Write(enc)
		}
	}

	b.WriteByte('}')
	return b.String(), nil
}
