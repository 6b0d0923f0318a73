package output

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

var (
	// ErrNoColumns indicates a destination table with no visible columns.
	ErrNoColumns = errors.New("table has no columns")
	// ErrUnsupportedColumn indicates a column type no DataType maps to.
	ErrUnsupportedColumn = errors.New("unsupported column type")
)

// Querier runs queries. Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const tableColumnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE($1::text, current_schema()) AND table_name = $2
ORDER BY ordinal_position`

type tableColumn struct {
	Name     string
	DataType string
}

// TableFields reads the columns of table, in ordinal order, as sink fields.
// table may be schema qualified.
func TableFields(ctx context.Context, q Querier, table string) ([]models.Field, error) {
	var schema *string
	name := table
	if s, n, ok := strings.Cut(table, "."); ok {
		schema, name = &s, n
	}

	rows, err := q.Query(ctx, tableColumnsSQL, schema, name)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[tableColumn])
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoColumns, table)
	}

	fields := make([]models.Field, len(cols))
	for i, c := range cols {
		dt, err := ColumnType(c.DataType)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = models.Field{Name: c.Name, Type: dt}
	}
	return fields, nil
}

// ColumnType maps an information_schema data_type to a DataType.
func ColumnType(pgType string) (models.DataType, error) {
	switch strings.ToLower(pgType) {
	case "text", "character varying", "character", "varchar", "char":
		return models.DataTypeString, nil
	case "integer", "int", "int4":
		return models.DataTypeInt32, nil
	case "timestamp without time zone", "timestamp with time zone", "timestamp", "timestamptz", "date":
		return models.DataTypeDateTime, nil
	case "boolean", "bool":
		return models.DataTypeBoolean, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedColumn, pgType)
}

// ParseColumns parses a column declaration such as
// "order_id:int32, placed:datetime, note:string".
func ParseColumns(decl string) ([]models.Field, error) {
	var fields []models.Field
	for _, part := range strings.Split(decl, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("column %q: expected name:type", part)
		}
		dt, err := models.ParseDataType(typ)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		fields = append(fields, models.Field{Name: name, Type: dt})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoColumns, decl)
	}
	return fields, nil
}
