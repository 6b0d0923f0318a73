// Package xltable extracts the rows of a named spreadsheet table into typed records.
package xltable

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
)

// Options configures an extraction run.
type Options struct {
	// Table is the display name of the table to extract (case-sensitive).
	Table string
	// Mappings declares the source columns and their target fields.
	Mappings *mapping.Registry
	// Reporter receives diagnostics. If nil, a quiet reporter on the
	// default slog logger is used.
	Reporter *Reporter
	// Logger, if set, receives this run's events instead of the Reporter's
	// logger. Used to attach request-scoped attributes.
	Logger *slog.Logger
}

func (o Options) reporter() *Reporter {
	if o.Reporter != nil {
		return o.Reporter
	}
	return NewReporter(nil, Version, false)
}

// ErrNoDataSource indicates a connection string without a Data Source entry.
var ErrNoDataSource = errors.New("connection string has no Data Source")

// DataSourceFromConnectionString returns the Data Source value of a
// ;-separated connection string such as
// "Provider=Microsoft.ACE.OLEDB.12.0;Data Source=C:\in.xlsx;".
func DataSourceFromConnectionString(conn string) (string, error) {
	for _, part := range strings.Split(conn, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "Data Source") {
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if value == "" {
				break
			}
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoDataSource, conn)
}
