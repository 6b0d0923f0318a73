package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// ErrInvalidReference indicates a malformed cell or range reference.
var ErrInvalidReference = errors.New("invalid cell reference")

// maxColumn guards the base-26 accumulator against overflow.
const maxColumn = 1 << 30

// DecodeCell decodes a reference such as "B7" or "$AA$12" into a coordinate.
//
// Columns are bijective base-26: A=1 ... Z=26, AA=27. Only uppercase letters
// are part of the column code. Anchors and whitespace anywhere in ref are
// ignored.
func DecodeCell(ref string) (models.CellCoordinate, error) {
	s := strings.Map(func(r rune) rune {
		if r == '$' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, ref)

	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	letters, digits := s[:i], s[i:]

	if letters == "" {
		return models.CellCoordinate{}, refError(ref, "missing column letters")
	}
	if digits == "" {
		return models.CellCoordinate{}, refError(ref, "missing row number")
	}
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return models.CellCoordinate{}, refError(ref, fmt.Sprintf("unexpected character %q", digits[j]))
		}
	}

	col := 0
	for k := 0; k < len(letters); k++ {
		col = col*26 + int(letters[k]-'A') + 1
		if col > maxColumn {
			return models.CellCoordinate{}, refError(ref, "column out of range")
		}
	}

	row, err := strconv.Atoi(digits)
	if err != nil {
		return models.CellCoordinate{}, refError(ref, "row out of range")
	}
	if row < 1 {
		return models.CellCoordinate{}, refError(ref, "row must be positive")
	}

	return models.CellCoordinate{Column: col, Row: row}, nil
}

// DecodeRange decodes a range such as "A1:C3" into its two corners.
func DecodeRange(rangeStr string) (models.CellCoordinate, models.CellCoordinate, error) {
	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return models.CellCoordinate{}, models.CellCoordinate{}, refError(rangeStr, "range must have exactly two cells")
	}

	start, err := DecodeCell(parts[0])
	if err != nil {
		return models.CellCoordinate{}, models.CellCoordinate{}, err
	}
	end, err := DecodeCell(parts[1])
	if err != nil {
		return models.CellCoordinate{}, models.CellCoordinate{}, err
	}

	return start, end, nil
}

func refError(ref, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidReference, ref, reason)
}
