package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DateTimeLayout is the CSV rendering of datetime values.
const DateTimeLayout = "2006-01-02T15:04:05.000"

// Encodings accepted by NewCSV.
var encodings = map[string]*charmap.Charmap{
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

// CSV writes records as comma-separated rows preceded by a header of field
// names. Null values are written as empty cells.
type CSV struct {
	buf     rowBuffer
	w       *csv.Writer
	enc     *transform.Writer
	header  bool
	written int
}

// NewCSV creates a CSV sink writing to w. enc names the output encoding;
// "" and "utf-8" write UTF-8. Characters the encoding cannot represent are
// replaced.
func NewCSV(w io.Writer, fields []models.Field, enc string) (*CSV, error) {
	c := &CSV{buf: newRowBuffer(fields)}

	switch name := strings.ToLower(strings.TrimSpace(enc)); name {
	case "", "utf-8", "utf8":
	default:
		cm, ok := encodings[name]
		if !ok {
			return nil, fmt.Errorf("unsupported output encoding %q", enc)
		}
		c.enc = transform.NewWriter(w, encoding.ReplaceUnsupported(cm.NewEncoder()))
		w = c.enc
	}

	c.w = csv.NewWriter(w)
	return c, nil
}

func (c *CSV) Fields() []models.Field {
	return c.buf.fields
}

func (c *CSV) AddRow() error {
	prev, ok, err := c.buf.start()
	if err != nil || !ok {
		return err
	}
	return c.write(prev)
}

func (c *CSV) Set(field int, v models.Value) error {
	return c.buf.set(field, v)
}

// Close writes the pending record and flushes all buffered output.
// The header is written even when no record was produced.
func (c *CSV) Close() error {
	if last, ok := c.buf.finish(); ok {
		if err := c.write(last); err != nil {
			return err
		}
	}
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.enc != nil {
		return c.enc.Close()
	}
	return nil
}

// Written returns the number of records written.
func (c *CSV) Written() int {
	return c.written
}

func (c *CSV) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	names := make([]string, len(c.buf.fields))
	for i, f := range c.buf.fields {
		names[i] = f.Name
	}
	return c.w.Write(names)
}

func (c *CSV) write(values []models.Value) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = FormatValue(v)
	}
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.written++
	return nil
}

// FormatValue renders a value as text. Null renders as "".
func FormatValue(v models.Value) string {
	switch v.Type {
	case models.DataTypeString:
		return v.String
	case models.DataTypeInt32:
		return strconv.FormatInt(int64(v.Int32), 10)
	case models.DataTypeDateTime:
		return v.Time.Format(DateTimeLayout)
	case models.DataTypeBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}
