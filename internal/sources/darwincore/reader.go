package darwincore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/database"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSpecies streams the species CSV at path, calling fn once per data row.
// Row numbers start at 1 for the first row after the header. An error
// returned by fn stops the read and is returned unchanged.
func ReadSpecies(ctx context.Context, path string, fn func(rowNum int, row Row) error) error {
	f, err := openSource(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &SourceFormatError{Path: path, Detail: fmt.Sprintf("read header: %v", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for rowNum := 1; ; rowNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &SourceFormatError{Path: path, Detail: fmt.Sprintf("row %d: %v", rowNum, err)}
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		if err := fn(rowNum, row); err != nil {
			return err
		}
	}
}

// ReadOccurrences scans table in the GeoPackage at path and calls fn with
// chunks of at most batchSize rows. firstRow is the 1-based row number of
// chunk[0]. Only one chunk is held in memory.
func ReadOccurrences(ctx context.Context, path, table string, batchSize int, fn func(firstRow int, chunk []Row) error) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &FileNotFoundError{Path: path, Err: err}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if table == "" {
		table = DefaultOccurrencesTable
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	db, err := database.OpenGeoPackage(path)
	if err != nil {
		return &SourceFormatError{Path: path, Detail: err.Error()}
	}
	defer db.Close()

	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return &SourceFormatError{Path: path, Detail: fmt.Sprintf("inspect tables: %v", err)}
	}
	if !exists {
		return &SourceFormatError{Path: path, Detail: fmt.Sprintf("table %q not found", table)}
	}

	rows, err := db.NewSelect().ColumnExpr("*").TableExpr("?", bun.Ident(table)).Rows(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	firstRow := 1
	chunk := make([]Row, 0, batchSize)
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if s, ok := cellString(values[i]); ok {
				row[col] = s
			}
		}
		chunk = append(chunk, row)

		if len(chunk) == batchSize {
			if err := fn(firstRow, chunk); err != nil {
				return err
			}
			firstRow += len(chunk)
			chunk = make([]Row, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}

	if len(chunk) > 0 {
		return fn(firstRow, chunk)
	}
	return nil
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func tableExists(ctx context.Context, db *bun.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", table,
	).Scan(&n)
	return n > 0, err
}

// cellString converts a SQLite cell to its text form. NULL reports false.
func cellString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.Format(time.RFC3339), true
	default:
		return fmt.Sprint(x), true
	}
}
