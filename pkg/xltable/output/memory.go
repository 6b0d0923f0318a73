package output

import "github.com/ukaji3/xltable-go/pkg/xltable/models"

// Memory collects records in memory.
type Memory struct {
	buf     rowBuffer
	records []models.Record
}

// NewMemory creates a sink declaring fields.
func NewMemory(fields []models.Field) *Memory {
	return &Memory{buf: newRowBuffer(fields)}
}

func (m *Memory) Fields() []models.Field {
	return m.buf.fields
}

func (m *Memory) AddRow() error {
	prev, ok, err := m.buf.start()
	if err != nil {
		return err
	}
	if ok {
		m.records = append(m.records, models.Record{Values: prev})
	}
	return nil
}

func (m *Memory) Set(field int, v models.Value) error {
	return m.buf.set(field, v)
}

// Close commits the pending record.
func (m *Memory) Close() error {
	if last, ok := m.buf.finish(); ok {
		m.records = append(m.records, models.Record{Values: last})
	}
	return nil
}

// Records returns the committed records, including the pending one.
func (m *Memory) Records() []models.Record {
	out := append([]models.Record(nil), m.records...)
	if m.buf.open {
		out = append(out, models.Record{Values: append([]models.Value(nil), m.buf.values...)})
	}
	return out
}

// Maps returns the records keyed by field name.
func (m *Memory) Maps() []map[string]any {
	records := m.Records()
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r.Map(m.buf.fields)
	}
	return out
}
