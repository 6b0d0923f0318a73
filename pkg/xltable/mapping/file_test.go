package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

const coaYAML = `
table: IF_COA
verbose: true
columns:
  - source: FA
    field: fa
    type: string
  - source: USID
    field: usid
    type: INT
    blank_as_null: false
  - source: ECD
    field: ecd
    type: date
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(coaYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Table != "IF_COA" || !f.Verbose || len(f.Columns) != 3 {
		t.Errorf("Unexpected file %+v", f)
	}

	r := f.Registry()
	mappings := r.Mappings()
	expected := []models.ColumnMapping{
		{SourceName: "FA", TargetField: "fa", DataType: models.DataTypeString, BlankAsNull: true},
		{SourceName: "USID", TargetField: "usid", DataType: models.DataTypeInt32, BlankAsNull: false},
		{SourceName: "ECD", TargetField: "ecd", DataType: models.DataTypeDateTime, BlankAsNull: true},
	}
	for i, m := range mappings {
		if m != expected[i] {
			t.Errorf("mapping %d = %+v, expected %+v", i, m, expected[i])
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no table", "columns:\n  - {source: A, field: a, type: string}\n", "Table"},
		{"no columns", "table: T1\n", "Columns"},
		{"bad type", "table: T1\ncolumns:\n  - {source: A, field: a, type: decimal}\n", "datatype"},
		{"missing field", "table: T1\ncolumns:\n  - {source: A, type: string}\n", "Field"},
		{"unknown key", "table: T1\nsheet: S\ncolumns:\n  - {source: A, field: a, type: string}\n", "sheet"},
		{"not yaml", "table: [", "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(path, []byte(coaYAML), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if f.Registry().Len() != 3 {
		t.Errorf("Expected 3 mappings, got %d", f.Registry().Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
