package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/ukaji3/xltable-go/internal/config"
	"github.com/ukaji3/xltable-go/pkg/xltable"
	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/output"
)

var (
	tableName   string
	mappingPath string
	connection  string
	outputPath  string
	format      string
	encoding    string
	dbTable     string
	verbose     bool
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [input.xlsx]",
		Short: "Extract the rows of a table",
		Long: `Extract reads the table named by --table (or the mapping file) and writes
one record per data row. The input is the positional path or the Data Source
of --connection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().StringVarP(&tableName, "table", "t", "", "Table display name (default: mapping file table)")
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "YAML mapping file")
	cmd.Flags().StringVar(&connection, "connection", "", "Connection string with a Data Source entry")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: jsonl, csv, postgres")
	cmd.Flags().StringVar(&encoding, "encoding", "", "CSV encoding: utf-8, iso-8859-1, windows-1252")
	cmd.Flags().StringVar(&dbTable, "db-table", "", "Destination table for the postgres format")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Emit informational diagnostics")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyExtractFlags(cmd, cfg)
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	inputPath, err := resolveInput(args, cfg.Extract.Connection)
	if err != nil {
		return err
	}

	if cfg.Extract.MappingFile == "" {
		return errors.New("no mapping file: use --mapping or XLTABLE_MAPPING_FILE")
	}
	decl, err := mapping.LoadFile(cfg.Extract.MappingFile)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}

	table := decl.Table
	if cfg.Extract.Table != "" {
		table = cfg.Extract.Table
	}
	registry := decl.Registry()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sink, finish, err := openSink(ctx, cfg, registry.Fields())
	if err != nil {
		return err
	}

	reporter := xltable.NewReporter(logger, version, cfg.Extract.Verbose || decl.Verbose)
	res, err := xltable.Extract(inputPath, xltable.Options{
		Table:    table,
		Mappings: registry,
		Reporter: reporter,
	}, sink)
	err = finishRun(logger, res, err, finish)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	logger.Info("extraction finished",
		"run_id", res.RunID,
		"table", res.Table.Name,
		"sheet", res.Table.Sheet,
		"records", res.Records,
	)
	return nil
}

// finishRun closes the sink once the run is over. Sinks write their last
// record on close, so a close failure is reported as a sink error of the run.
func finishRun(logger *slog.Logger, res *xltable.Result, runErr error, finish sinkFinisher) error {
	ferr := finish(runErr)
	if runErr != nil || ferr == nil {
		return runErr
	}

	msg := "closing sink: " + ferr.Error()
	logger.Error(msg, "run_id", res.RunID, "kind", string(xltable.KindSink))
	res.Events = append(res.Events, xltable.Event{
		Severity: xltable.SeverityError,
		Message:  msg,
		Fields:   map[string]any{"kind": string(xltable.KindSink)},
	})
	return xltable.NewExtractionError(xltable.KindSink, ferr)
}

func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("table") {
		cfg.Extract.Table = tableName
	}
	if flags.Changed("mapping") {
		cfg.Extract.MappingFile = mappingPath
	}
	if flags.Changed("connection") {
		cfg.Extract.Connection = connection
	}
	if flags.Changed("verbose") {
		cfg.Extract.Verbose = verbose
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("encoding") {
		cfg.Output.Encoding = encoding
	}
	if flags.Changed("db-table") {
		cfg.Database.Table = dbTable
	}
}

// resolveInput returns the workbook path from the arguments or, failing
// that, from the connection string.
func resolveInput(args []string, conn string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if conn == "" {
		return "", errors.New("no input: pass a path or --connection")
	}
	return xltable.DataSourceFromConnectionString(conn)
}

// sinkFinisher closes the sink once the run is over. runErr is the run's
// error; the postgres sink commits only when it is nil.
type sinkFinisher func(runErr error) error

func openSink(ctx context.Context, cfg *config.Config, fields []models.Field) (xltable.Sink, sinkFinisher, error) {
	if cfg.UsesDatabase() {
		return openPostgresSink(ctx, cfg)
	}

	w := io.Writer(os.Stdout)
	var file *os.File
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output: %w", err)
		}
		w, file = f, f
	}

	closeFile := func(err error) error {
		if file == nil {
			return err
		}
		if cerr := file.Close(); err == nil {
			return cerr
		}
		return err
	}

	if strings.EqualFold(cfg.Output.Format, "csv") {
		sink, err := output.NewCSV(w, fields, cfg.Output.Encoding)
		if err != nil {
			return nil, nil, closeFile(err)
		}
		return sink, func(error) error { return closeFile(sink.Close()) }, nil
	}

	sink := output.NewJSONLines(w, fields)
	return sink, func(error) error { return closeFile(sink.Close()) }, nil
}

// postgresFields returns the destination columns from DB_COLUMNS or, when
// that is unset, from the table's catalog entry, never from the mapping file.
func postgresFields(ctx context.Context, cfg *config.Config, q output.Querier) ([]models.Field, error) {
	if cfg.Database.Columns != "" {
		return output.ParseColumns(cfg.Database.Columns)
	}
	return output.TableFields(ctx, q, cfg.Database.Table)
}

func openPostgresSink(ctx context.Context, cfg *config.Config) (xltable.Sink, sinkFinisher, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	fields, err := postgresFields(ctx, cfg, tx)
	if err != nil {
		tx.Rollback(ctx)
		pool.Close()
		return nil, nil, fmt.Errorf("destination columns: %w", err)
	}

	sink, err := output.NewPostgres(ctx, tx, cfg.Database.Table, fields, cfg.Output.BatchSize)
	if err != nil {
		tx.Rollback(ctx)
		pool.Close()
		return nil, nil, err
	}

	finish := func(runErr error) error {
		defer pool.Close()
		defer tx.Rollback(ctx)

		if runErr != nil {
			slog.Warn("rolling back copied rows", "table", cfg.Database.Table)
			return nil
		}
		if err := sink.Close(); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		slog.Info("rows copied", "table", cfg.Database.Table, "rows", sink.Copied())
		return nil
	}
	return sink, finish, nil
}
