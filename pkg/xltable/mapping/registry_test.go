package mapping

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

var coaTable = models.TableDescriptor{
	Name:    "IF_COA",
	Sheet:   "Data",
	Columns: []string{"FA", "USID", "ECD"},
}

func TestResolveOffsets(t *testing.T) {
	r := NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("USID", "usid", models.DataTypeString, true)

	plan, err := r.ResolveOffsets(coaTable, nil)
	if err != nil {
		t.Fatalf("ResolveOffsets failed: %v", err)
	}

	mappings := plan.Mappings()
	if mappings[0].ResolvedOffset != 1 || mappings[1].ResolvedOffset != 2 {
		t.Errorf("Offsets = %d, %d, expected 1, 2", mappings[0].ResolvedOffset, mappings[1].ResolvedOffset)
	}
	if !reflect.DeepEqual(plan.At(2), []int{1}) {
		t.Errorf("At(2) = %v, expected [1]", plan.At(2))
	}
	if plan.At(3) != nil {
		t.Errorf("Unmapped column 3 resolved to %v", plan.At(3))
	}

	// The registry itself stays unresolved.
	if r.Mappings()[0].Resolved() {
		t.Error("ResolveOffsets modified the registry")
	}
}

func TestResolveOffsetsMissing(t *testing.T) {
	r := NewRegistry(
		models.ColumnMapping{SourceName: "FA", TargetField: "fa", DataType: models.DataTypeString},
		models.ColumnMapping{SourceName: "MISSING", TargetField: "m", DataType: models.DataTypeString},
		models.ColumnMapping{SourceName: "usid", TargetField: "u", DataType: models.DataTypeString},
	)

	_, err := r.ResolveOffsets(coaTable, nil)
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("ResolveOffsets error = %v, expected ErrColumnNotFound", err)
	}

	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected *MissingColumnsError, got %T", err)
	}
	if !reflect.DeepEqual(missing.Columns, []string{"MISSING", "usid"}) {
		t.Errorf("Missing = %v, expected [MISSING usid]", missing.Columns)
	}
	if missing.Table != "IF_COA" {
		t.Errorf("Table = %q, expected IF_COA", missing.Table)
	}
}

func TestResolveOffsetsDuplicateSource(t *testing.T) {
	r := NewRegistry()
	r.Map("FA", "fa_text", models.DataTypeString, true)
	r.Map("FA", "fa_num", models.DataTypeInt32, true)

	plan, err := r.ResolveOffsets(coaTable, nil)
	if err != nil {
		t.Fatalf("ResolveOffsets failed: %v", err)
	}
	if !reflect.DeepEqual(plan.At(1), []int{0, 1}) {
		t.Errorf("At(1) = %v, expected [0 1]", plan.At(1))
	}
}

func TestBind(t *testing.T) {
	r := NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("ECD", "ecd", models.DataTypeDateTime, true)

	fields := []models.Field{
		{Name: "ecd", Type: models.DataTypeDateTime},
		{Name: "fa", Type: models.DataTypeString},
	}
	binding, err := r.Bind(fields)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if !reflect.DeepEqual(binding, Binding{1, 0}) {
		t.Errorf("Binding = %v, expected [1 0]", binding)
	}

	plan, err := r.ResolveOffsets(coaTable, binding)
	if err != nil {
		t.Fatalf("ResolveOffsets failed: %v", err)
	}
	if plan.Field(0) != 1 || plan.Field(1) != 0 {
		t.Errorf("Field(0), Field(1) = %d, %d, expected 1, 0", plan.Field(0), plan.Field(1))
	}
}

func TestBindErrors(t *testing.T) {
	r := NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("USID", "usid", models.DataTypeInt32, true)

	tests := []struct {
		name   string
		fields []models.Field
		err    error
	}{
		{"count mismatch", []models.Field{{Name: "fa", Type: models.DataTypeString}}, ErrFieldCount},
		{"unknown field", []models.Field{{Name: "fa", Type: models.DataTypeString}, {Name: "USID", Type: models.DataTypeInt32}}, ErrUnboundField},
		{"type mismatch", []models.Field{{Name: "fa", Type: models.DataTypeString}, {Name: "usid", Type: models.DataTypeString}}, ErrUnboundField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Bind(tt.fields); !errors.Is(err, tt.err) {
				t.Errorf("Bind error = %v, expected %v", err, tt.err)
			}
		})
	}

	dup := NewRegistry()
	dup.Map("FA", "fa", models.DataTypeString, true)
	dup.Map("USID", "fa", models.DataTypeString, true)
	fields := []models.Field{{Name: "fa", Type: models.DataTypeString}, {Name: "other", Type: models.DataTypeString}}
	if _, err := dup.Bind(fields); !errors.Is(err, ErrUnboundField) {
		t.Errorf("Bind with duplicate target error = %v, expected ErrUnboundField", err)
	}
}

func TestFields(t *testing.T) {
	r := NewRegistry()
	r.Map("FA", "fa", models.DataTypeString, true)
	r.Map("ECD", "ecd", models.DataTypeDateTime, false)

	expected := []models.Field{
		{Name: "fa", Type: models.DataTypeString},
		{Name: "ecd", Type: models.DataTypeDateTime},
	}
	if got := r.Fields(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Fields() = %v, expected %v", got, expected)
	}
	if _, err := r.Bind(r.Fields()); err != nil {
		t.Errorf("Bind(Fields()) failed: %v", err)
	}
}
