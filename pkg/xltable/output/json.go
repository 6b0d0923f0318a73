package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// JSONLines writes one JSON object per record. Keys follow field order and
// null values are written as null.
type JSONLines struct {
	buf     rowBuffer
	w       *bufio.Writer
	written int
}

// NewJSONLines creates a JSON lines sink writing to w.
func NewJSONLines(w io.Writer, fields []models.Field) *JSONLines {
	return &JSONLines{buf: newRowBuffer(fields), w: bufio.NewWriter(w)}
}

func (j *JSONLines) Fields() []models.Field {
	return j.buf.fields
}

func (j *JSONLines) AddRow() error {
	prev, ok, err := j.buf.start()
	if err != nil || !ok {
		return err
	}
	return j.write(prev)
}

func (j *JSONLines) Set(field int, v models.Value) error {
	return j.buf.set(field, v)
}

// Close writes the pending record and flushes the writer.
func (j *JSONLines) Close() error {
	if last, ok := j.buf.finish(); ok {
		if err := j.write(last); err != nil {
			return err
		}
	}
	return j.w.Flush()
}

// Written returns the number of records written.
func (j *JSONLines) Written() int {
	return j.written
}

func (j *JSONLines) write(values []models.Value) error {
	line, err := encodeRecord(j.buf.fields, values)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(line); err != nil {
		return err
	}
	j.written++
	return nil
}

func encodeRecord(fields []models.Field, values []models.Value) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}
