package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/menta2k/catalog-prep/pkg/types"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadProductsSQLite reads every row of table from the SQLite database at
// dbPath into a Frame, in rowid order. Cells are rendered as text; NULL
// becomes the empty string.
func LoadProductsSQLite(ctx context.Context, dbPath, table string) (*Frame, error) {
	if !identifier.MatchString(table) {
		return nil, types.Configuration("invalid table name %q", table)
	}

	if _, err := os.Stat(dbPath); err != nil {
		return nil, types.WrapIO("stat", dbPath, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, types.WrapIO("open sqlite", dbPath, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, table))
	if err != nil {
		return nil, types.WrapIO("query", dbPath, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	frame := &Frame{Header: cols}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = cellString(v)
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapIO("read", dbPath, err)
	}
	return frame, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
