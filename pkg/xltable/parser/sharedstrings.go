package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// ErrSharedStringOutOfRange indicates a shared-string index outside the table.
var ErrSharedStringOutOfRange = errors.New("shared string index out of range")

// ResolveSharedString returns table[index].
func ResolveSharedString(index int, table []string) (string, error) {
	if index < 0 || index >= len(table) {
		return "", fmt.Errorf("%w: %d (table has %d entries)", ErrSharedStringOutOfRange, index, len(table))
	}
	return table[index], nil
}

// CellText resolves the text of a stored cell.
// ok is false when the cell has no value. Literal values are returned verbatim.
func CellText(cell models.RawCellValue, sst []string) (text string, ok bool, err error) {
	if !cell.Present {
		return "", false, nil
	}
	if !cell.Shared {
		return cell.Text, true, nil
	}

	idx, err := strconv.Atoi(strings.TrimSpace(cell.Text))
	if err != nil {
		return "", false, fmt.Errorf("cell %s: invalid shared string index %q: %w", cell.Ref, cell.Text, err)
	}
	text, err = ResolveSharedString(idx, sst)
	if err != nil {
		return "", false, fmt.Errorf("cell %s: %w", cell.Ref, err)
	}
	return text, true, nil
}
