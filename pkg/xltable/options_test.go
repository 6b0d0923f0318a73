package xltable

import (
	"errors"
	"testing"
)

func TestDataSourceFromConnectionString(t *testing.T) {
	tests := []struct {
		conn     string
		expected string
	}{
		{`Provider=Microsoft.ACE.OLEDB.12.0;Data Source=C:\in\book.xlsx;Extended Properties="Excel 12.0"`, `C:\in\book.xlsx`},
		{"data source = /srv/in.xlsx", "/srv/in.xlsx"},
		{`Data Source="/tmp/with space.xlsx";`, "/tmp/with space.xlsx"},
	}

	for _, tt := range tests {
		got, err := DataSourceFromConnectionString(tt.conn)
		if err != nil {
			t.Errorf("DataSourceFromConnectionString(%q) failed: %v", tt.conn, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("DataSourceFromConnectionString(%q) = %q, expected %q", tt.conn, got, tt.expected)
		}
	}

	for _, conn := range []string{"", "Provider=x", "Data Source=;"} {
		if _, err := DataSourceFromConnectionString(conn); !errors.Is(err, ErrNoDataSource) {
			t.Errorf("DataSourceFromConnectionString(%q) error = %v, expected ErrNoDataSource", conn, err)
		}
	}
}

func TestExtractionErrorMessage(t *testing.T) {
	err := &ExtractionError{Kind: KindTypeCoercion, Sheet: "Data", Row: 3, Column: "ECD", Err: errors.New("bad")}
	expected := `type_coercion error in sheet "Data" row 3 column "ECD": bad`
	if err.Error() != expected {
		t.Errorf("Error() = %q, expected %q", err.Error(), expected)
	}

	if got := NewExtractionError(KindIO, errors.New("gone")).Error(); got != "io error: gone" {
		t.Errorf("Error() = %q", got)
	}
}
