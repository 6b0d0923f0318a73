package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// DefaultBatchSize is the number of records copied per CopyFrom call.
const DefaultBatchSize = 500

// Copier is the database surface used by Postgres.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Postgres copies records into a table whose columns are named after the
// declared fields. Records are buffered and copied in batches.
//
// The sink keeps the context it was created with because the engine drives
// it through context-free calls.
type Postgres struct {
	ctx       context.Context
	db        Copier
	table     pgx.Identifier
	columns   []string
	batchSize int

	buf    rowBuffer
	batch  [][]any
	copied int64
}

// NewPostgres creates a sink copying into table, which may be schema
// qualified ("staging.orders").
func NewPostgres(ctx context.Context, db Copier, table string, fields []models.Field, batchSize int) (*Postgres, error) {
	if table == "" {
		return nil, fmt.Errorf("postgres sink: no table name")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	return &Postgres{
		ctx:       ctx,
		db:        db,
		table:     pgx.Identifier(strings.Split(table, ".")),
		columns:   columns,
		batchSize: batchSize,
		buf:       newRowBuffer(fields),
	}, nil
}

func (p *Postgres) Fields() []models.Field {
	return p.buf.fields
}

func (p *Postgres) AddRow() error {
	prev, ok, err := p.buf.start()
	if err != nil || !ok {
		return err
	}
	return p.queue(prev)
}

func (p *Postgres) Set(field int, v models.Value) error {
	return p.buf.set(field, v)
}

// Close copies the pending record and any buffered batch.
func (p *Postgres) Close() error {
	if last, ok := p.buf.finish(); ok {
		p.batch = append(p.batch, p.pgRow(last))
	}
	return p.flush()
}

// Copied returns the number of rows reported by the database.
func (p *Postgres) Copied() int64 {
	return p.copied
}

func (p *Postgres) queue(values []models.Value) error {
	p.batch = append(p.batch, p.pgRow(values))
	if len(p.batch) >= p.batchSize {
		return p.flush()
	}
	return nil
}

func (p *Postgres) flush() error {
	if len(p.batch) == 0 {
		return nil
	}
	n, err := p.db.CopyFrom(p.ctx, p.table, p.columns, pgx.CopyFromRows(p.batch))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", p.table.Sanitize(), err)
	}
	p.copied += n
	p.batch = p.batch[:0]
	return nil
}

func (p *Postgres) pgRow(values []models.Value) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = ToPg(v, p.buf.fields[i].Type)
	}
	return row
}

// ToPg converts a value to the pgtype matching dataType. Null values convert
// to an invalid pgtype of that type.
func ToPg(v models.Value, dataType models.DataType) any {
	valid := !v.IsNull()
	switch dataType {
	case models.DataTypeInt32:
		return pgtype.Int4{Int32: v.Int32, Valid: valid}
	case models.DataTypeDateTime:
		return pgtype.Timestamp{Time: v.Time, Valid: valid}
	case models.DataTypeBoolean:
		return pgtype.Bool{Bool: v.Bool, Valid: valid}
	default:
		return pgtype.Text{String: v.String, Valid: valid}
	}
}
