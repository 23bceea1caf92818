package db

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/tern-data/sqlport/core/export"
	"github.com/tern-data/sqlport/internal/logger"
)

// batchStream adapts *sql.Rows into the pull-based batch sequence the
// export engine consumes. It is lazy, finite and non-restartable, and
// always emits at least one batch so an empty result still carries the
// statement's column metadata.
type batchStream struct {
	rows      *sql.Rows
	schema    export.Schema
	batchSize int
	emitted   bool
	done      bool
}

func newBatchStream(rows *sql.Rows, batchSize int) (*batchStream, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, export.Errorf(export.ErrQuery, "error reading result metadata: %w", err)
	}

	schema := make(export.Schema, len(types))
	for i, ct := range types {
		schema[i] = export.Column{Name: ct.Name(), Kind: columnKind(ct)}
	}
	logger.Debug("Result schema: %s", schema)

	return &batchStream{rows: rows, schema: schema, batchSize: batchSize}, nil
}

// Next returns up to batchSize rows, or (nil, nil) once the result set is
// drained. The underlying rows are closed as soon as the last row is read.
func (s *batchStream) Next() (*export.Batch, error) {
	if s.done {
		return nil, nil
	}

	out := make([][]any, 0, s.batchSize)
	for len(out) < s.batchSize {
		if !s.rows.Next() {
			s.done = true
			break
		}
		row, err := s.scanRow()
		if err != nil {
			s.done = true
			s.rows.Close()
			return nil, err
		}
		out = append(out, row)
	}

	if s.done {
		if err := s.rows.Err(); err != nil {
			s.rows.Close()
			return nil, export.Errorf(export.ErrQuery, "error iterating rows: %w", err)
		}
		s.rows.Close()
	}

	if len(out) == 0 && s.emitted {
		return nil, nil
	}
	s.emitted = true
	return &export.Batch{Schema: s.schema, Rows: out}, nil
}

// Close releases the underlying rows early; safe after exhaustion.
func (s *batchStream) Close() error {
	s.done = true
	return s.rows.Close()
}

func (s *batchStream) scanRow() ([]any, error) {
	dest := make([]any, len(s.schema))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, export.Errorf(export.ErrQuery, "error reading row: %w", err)
	}

	row := make([]any, len(s.schema))
	for i := range dest {
		v, err := coerce(*(dest[i].(*any)), s.schema[i])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// columnKind maps a driver-reported column type onto a logical kind.
// Columns the driver cannot describe (sqlite expression columns report an
// empty type name) default to string; coerce renders whatever value
// arrives into that kind.
func columnKind(ct *sql.ColumnType) export.Kind {
	name := strings.ToUpper(ct.DatabaseTypeName())
	// Strip length/precision suffixes like VARCHAR(255)
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		name = name[:idx]
	}

	switch name {
	case "BOOL", "BOOLEAN":
		return export.KindBool
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return export.KindInt64
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION",
		"NUMERIC", "DECIMAL":
		return export.KindFloat64
	case "BYTEA", "BLOB", "BINARY", "VARBINARY":
		return export.KindBytes
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return export.KindTimestamp
	default:
		return export.KindString
	}
}

// timestampLayouts are tried in order for backends that hand timestamps
// over as text (sqlite stores them that way).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// coerce normalizes a scanned value into the canonical Go value for the
// column's kind, so renderers never see driver-specific representations.
func coerce(v any, col export.Column) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch col.Kind {
	case export.KindBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case int64:
			return val != 0, nil
		}
	case export.KindInt64:
		switch val := v.(type) {
		case int64:
			return val, nil
		case int32:
			return int64(val), nil
		case int:
			return int64(val), nil
		case []byte:
			if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
				return n, nil
			}
		case string:
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return n, nil
			}
		}
	case export.KindFloat64:
		switch val := v.(type) {
		case float64:
			return val, nil
		case float32:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case []byte:
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f, nil
			}
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f, nil
			}
		}
	case export.KindBytes:
		switch val := v.(type) {
		case []byte:
			return val, nil
		case string:
			return []byte(val), nil
		}
	case export.KindTimestamp:
		switch val := v.(type) {
		case time.Time:
			return val, nil
		case string:
			if t, ok := parseTimestamp(val); ok {
				return t, nil
			}
		case []byte:
			if t, ok := parseTimestamp(string(val)); ok {
				return t, nil
			}
		}
	default: // KindString
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		case bool:
			return strconv.FormatBool(val), nil
		case int64:
			return strconv.FormatInt(val, 10), nil
		case float64:
			return strconv.FormatFloat(val, 'g', -1, 64), nil
		case time.Time:
			return val.Format(time.RFC3339Nano), nil
		}
	}

	return nil, export.Errorf(export.ErrQuery,
		"column %q: cannot map driver value %v (%T) to %s", col.Name, v, v, col.Kind)
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
