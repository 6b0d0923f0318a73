package xltable

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/ukaji3/xltable-go/pkg/xltable/parser"
)

// ListTables returns every table declared in the xlsx file at path, in sheet
// order. Header rows are not located.
func ListTables(path string) ([]models.TableDescriptor, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, NewExtractionError(KindIO, fmt.Errorf("%w: %s", ErrFileNotFound, path))
	}
	pkg, err := parser.Open(path)
	if err != nil {
		return nil, NewExtractionError(KindIO, err)
	}
	defer pkg.Close()

	return ListWorkbookTables(pkg)
}

// ListTablesReader is ListTables for a document held in r.
func ListTablesReader(r io.ReaderAt, size int64) ([]models.TableDescriptor, error) {
	pkg, err := parser.OpenReader(r, size)
	if err != nil {
		return nil, NewExtractionError(KindIO, err)
	}
	defer pkg.Close()

	return ListWorkbookTables(pkg)
}

// ListWorkbookTables returns the tables of an opened workbook.
func ListWorkbookTables(wb parser.Workbook) ([]models.TableDescriptor, error) {
	var result []models.TableDescriptor
	for _, sheet := range wb.Sheets() {
		tables, err := wb.Tables(sheet)
		if err != nil {
			return nil, classify(err)
		}
		for _, t := range tables {
			desc := models.TableDescriptor{
				Name:    t.DisplayName,
				Sheet:   sheet,
				Ref:     t.Ref,
				Columns: t.Columns,
			}
			if t.Ref != "" {
				start, end, err := parser.DecodeRange(t.Ref)
				if err != nil {
					return nil, &ExtractionError{Kind: KindParse, Sheet: sheet, Err: err}
				}
				desc.Start, desc.End = start, end
			}
			result = append(result, desc)
		}
	}
	return result, nil
}
