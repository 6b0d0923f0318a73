// Package mapping binds table columns to typed output fields.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

var (
	// ErrFieldCount indicates the number of mappings differs from the number
	// of target fields.
	ErrFieldCount = errors.New("mapping count does not match target field count")
	// ErrUnboundField indicates a mapping whose target field is not declared
	// by the sink, or is declared with another type.
	ErrUnboundField = errors.New("mapping target field not bound")
	// ErrColumnNotFound indicates a mapped source column is absent from the table.
	ErrColumnNotFound = errors.New("column not found")
)

// MissingColumnsError lists every mapped source column absent from a table.
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("unable to locate columns %q in table %q", e.Columns, e.Table)
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrColumnNotFound
}

// Registry holds the declared column mappings. It is not modified by binding
// or resolution, so one registry may serve concurrent runs.
type Registry struct {
	mappings []models.ColumnMapping
}

// Binding maps each declared mapping to a sink field index.
type Binding []int

// NewRegistry creates a registry from declarations.
func NewRegistry(mappings ...models.ColumnMapping) *Registry {
	r := &Registry{}
	for _, m := range mappings {
		r.Map(m.SourceName, m.TargetField, m.DataType, m.BlankAsNull)
	}
	return r
}

// Map declares a mapping from a source column to a target field.
func (r *Registry) Map(source, target string, dataType models.DataType, blankAsNull bool) {
	r.mappings = append(r.mappings, models.ColumnMapping{
		SourceName:  source,
		TargetField: target,
		DataType:    dataType,
		BlankAsNull: blankAsNull,
	})
}

// Len returns the number of declared mappings.
func (r *Registry) Len() int {
	return len(r.mappings)
}

// Mappings returns a copy of the declarations.
func (r *Registry) Mappings() []models.ColumnMapping {
	return append([]models.ColumnMapping(nil), r.mappings...)
}

// Fields derives one output field per mapping, in declaration order.
func (r *Registry) Fields() []models.Field {
	fields := make([]models.Field, len(r.mappings))
	for i, m := range r.mappings {
		fields[i] = models.Field{Name: m.TargetField, Type: m.DataType}
	}
	return fields
}

// Bind checks the declarations against the sink's fields and returns the
// field index of every mapping. Fields are matched by exact name and must
// carry the mapping's type; each field is bound at most once.
func (r *Registry) Bind(fields []models.Field) (Binding, error) {
	if len(r.mappings) != len(fields) {
		return nil, fmt.Errorf("%w: %d column mappings have been set up, but the sink declares %d fields",
			ErrFieldCount, len(r.mappings), len(fields))
	}

	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.Name] = i
	}

	bound := make(Binding, len(r.mappings))
	used := make([]bool, len(fields))
	var problems []string
	for i, m := range r.mappings {
		idx, ok := byName[m.TargetField]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("field %q is not declared", m.TargetField))
		case fields[idx].Type != m.DataType:
			problems = append(problems, fmt.Sprintf("field %q is %s, mapping is %s", m.TargetField, fields[idx].Type, m.DataType))
		case used[idx]:
			problems = append(problems, fmt.Sprintf("field %q is mapped more than once", m.TargetField))
		default:
			used[idx] = true
			bound[i] = idx
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnboundField, strings.Join(problems, "; "))
	}

	return bound, nil
}

// Plan is a registry resolved against one table. It is read-only once built.
type Plan struct {
	mappings []models.ColumnMapping
	fields   Binding
	byColumn map[int][]int
}

// ResolveOffsets matches every mapping to the first table column with the
// same name. Unreferenced table columns are ignored. When any mapping stays
// unresolved, the returned error is a *MissingColumnsError naming all of them.
//
// A nil binding binds mapping i to field i.
func (r *Registry) ResolveOffsets(desc models.TableDescriptor, binding Binding) (*Plan, error) {
	if binding == nil {
		binding = make(Binding, len(r.mappings))
		for i := range binding {
			binding[i] = i
		}
	}
	if len(binding) != len(r.mappings) {
		return nil, fmt.Errorf("%w: binding covers %d of %d mappings", ErrFieldCount, len(binding), len(r.mappings))
	}

	p := &Plan{
		mappings: r.Mappings(),
		fields:   binding,
		byColumn: make(map[int][]int, len(r.mappings)),
	}

	var missing []string
	for i := range p.mappings {
		m := &p.mappings[i]
		for j, col := range desc.Columns {
			if col == m.SourceName {
				m.ResolvedOffset = j + 1
				break
			}
		}
		if !m.Resolved() {
			missing = append(missing, m.SourceName)
			continue
		}
		p.byColumn[m.ResolvedOffset] = append(p.byColumn[m.ResolvedOffset], i)
	}

	if len(missing) > 0 {
		return p, &MissingColumnsError{Table: desc.Name, Columns: missing}
	}
	return p, nil
}

// Mappings returns the resolved mappings.
func (p *Plan) Mappings() []models.ColumnMapping {
	return append([]models.ColumnMapping(nil), p.mappings...)
}

// Mapping returns mapping i.
func (p *Plan) Mapping(i int) models.ColumnMapping {
	return p.mappings[i]
}

// Field returns the sink field index bound to mapping i.
func (p *Plan) Field(i int) int {
	return p.fields[i]
}

// At returns the indexes of the mappings resolved to a 1-based column.
func (p *Plan) At(column int) []int {
	return p.byColumn[column]
}
