package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ukaji3/xltable-go/pkg/xltable/models"
)

// Relationship types used to navigate the package.
const (
	relOfficeDocument = "/officeDocument"
	relWorksheet      = "/worksheet"
	relSharedStrings  = "/sharedStrings"
	relTable          = "/table"
)

// ErrPartNotFound indicates a package part referenced by a relationship is missing.
var ErrPartNotFound = errors.New("package part not found")

// Workbook is the navigable view of a spreadsheet document used by the locator
// and the extraction engine.
type Workbook interface {
	// Sheets returns sheet names in workbook declaration order.
	Sheets() []string
	// Tables returns the table definitions attached to a sheet.
	Tables(sheet string) ([]TableDef, error)
	// Rows returns the stored rows of a sheet.
	Rows(sheet string) ([]models.Row, error)
	// SharedStrings returns the workbook-level shared-string table.
	SharedStrings() []string
}

// TableDef is a table part as declared in the package.
type TableDef struct {
	Name        string
	DisplayName string
	Ref         string
	Columns     []string
}

// Package is an opened xlsx document. It implements Workbook.
type Package struct {
	closer        io.Closer
	files         map[string]*zip.File
	sheets        []sheetPart
	sharedStrings []string
}

type sheetPart struct {
	name string
	path string
}

// Open opens an xlsx file. The caller must Close the returned Package.
func Open(name string) (*Package, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, err
	}

	p, err := newPackage(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	p.closer = rc
	return p, nil
}

// OpenReader opens an xlsx document held in r.
func OpenReader(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newPackage(zr)
}

func newPackage(zr *zip.Reader) (*Package, error) {
	p := &Package{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		p.files[f.Name] = f
	}

	workbookPath := "xl/workbook.xml"
	if data, err := p.readZipFile("_rels/.rels"); err == nil {
		for _, rel := range parseRels(data) {
			if strings.HasSuffix(rel.Type, relOfficeDocument) {
				workbookPath = resolvePartPath("", rel.Target)
				break
			}
		}
	}

	workbookXML, err := p.readZipFile(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	sheetsInfo, err := parseWorkbookSheets(workbookXML)
	if err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}

	wbRelsXML, err := p.readZipFile(relsPathFor(workbookPath))
	if err != nil {
		return nil, fmt.Errorf("read workbook relationships: %w", err)
	}
	wbDir := path.Dir(workbookPath)
	rels := make(map[string]xmlRelationship)
	for _, rel := range parseRels(wbRelsXML) {
		rels[rel.ID] = rel
		if strings.HasSuffix(rel.Type, relSharedStrings) {
			sstXML, err := p.readZipFile(resolvePartPath(wbDir, rel.Target))
			if err != nil {
				return nil, fmt.Errorf("read shared strings: %w", err)
			}
			if p.sharedStrings, err = parseSharedStrings(sstXML); err != nil {
				return nil, fmt.Errorf("parse shared strings: %w", err)
			}
		}
	}

	for _, s := range sheetsInfo {
		rel, ok := rels[s.rID]
		if !ok || !strings.HasSuffix(rel.Type, relWorksheet) {
			// Chart sheets and dialog sheets carry no tables.
			continue
		}
		p.sheets = append(p.sheets, sheetPart{name: s.name, path: resolvePartPath(wbDir, rel.Target)})
	}

	return p, nil
}

// Close releases the underlying file, if any.
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}

// Sheets returns worksheet names in declaration order.
func (p *Package) Sheets() []string {
	names := make([]string, len(p.sheets))
	for i, s := range p.sheets {
		names[i] = s.name
	}
	return names
}

// SharedStrings returns the shared-string table.
func (p *Package) SharedStrings() []string {
	return p.sharedStrings
}

// Tables returns the tables attached to a sheet, in relationship order.
func (p *Package) Tables(sheet string) ([]TableDef, error) {
	sp, err := p.sheet(sheet)
	if err != nil {
		return nil, err
	}

	relsXML, err := p.readZipFile(relsPathFor(sp.path))
	if errors.Is(err, ErrPartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tables []TableDef
	for _, rel := range parseRels(relsXML) {
		if !strings.HasSuffix(rel.Type, relTable) {
			continue
		}
		data, err := p.readZipFile(resolvePartPath(path.Dir(sp.path), rel.Target))
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		def, err := parseTablePart(data)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: parse table %s: %w", sheet, rel.Target, err)
		}
		tables = append(tables, def)
	}

	return tables, nil
}

// Rows returns the stored rows of a sheet.
func (p *Package) Rows(sheet string) ([]models.Row, error) {
	sp, err := p.sheet(sheet)
	if err != nil {
		return nil, err
	}
	data, err := p.readZipFile(sp.path)
	if err != nil {
		return nil, err
	}
	rows, err := parseSheetRows(data)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (p *Package) sheet(name string) (sheetPart, error) {
	for _, s := range p.sheets {
		if s.name == name {
			return s, nil
		}
	}
	return sheetPart{}, fmt.Errorf("sheet %q does not exist", name)
}

// readZipFile reads a part by its path inside the package.
func (p *Package) readZipFile(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resolvePartPath resolves a relationship target against the directory of
// its source part. Absolute targets are rooted at the package.
func resolvePartPath(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// relsPathFor returns the relationships part of a source part,
// e.g. xl/worksheets/sheet1.xml -> xl/worksheets/_rels/sheet1.xml.rels.
func relsPathFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

type xmlRelationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type xmlRelationships struct {
	Relationships []xmlRelationship `xml:"Relationship"`
}

func parseRels(data []byte) []xmlRelationship {
	var rels xmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}
	return rels.Relationships
}

type workbookSheet struct {
	name string
	rID  string
}

// parseWorkbookSheets returns the sheets of workbook.xml in declaration order.
func parseWorkbookSheets(data []byte) ([]workbookSheet, error) {
	var wb struct {
		Sheets []struct {
			Name  string     `xml:"name,attr"`
			Attrs []xml.Attr `xml:",any,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := xml.Unmarshal(data, &wb); err != nil {
		return nil, err
	}

	result := make([]workbookSheet, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		var rID string
		for _, attr := range s.Attrs {
			// r:id lives in the transitional or the strict relationships namespace.
			if attr.Name.Local == "id" && attr.Name.Space != "" {
				rID = attr.Value
			}
		}
		result = append(result, workbookSheet{name: s.Name, rID: rID})
	}
	return result, nil
}

type xmlTable struct {
	Name        string `xml:"name,attr"`
	DisplayName string `xml:"displayName,attr"`
	Ref         string `xml:"ref,attr"`
	Columns     []struct {
		Name string `xml:"name,attr"`
	} `xml:"tableColumns>tableColumn"`
}

func parseTablePart(data []byte) (TableDef, error) {
	var t xmlTable
	if err := xml.Unmarshal(data, &t); err != nil {
		return TableDef{}, err
	}

	def := TableDef{
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Ref:         t.Ref,
		Columns:     make([]string, len(t.Columns)),
	}
	if def.DisplayName == "" {
		def.DisplayName = t.Name
	}
	for i, c := range t.Columns {
		def.Columns[i] = c.Name
	}
	return def, nil
}

// xlsxSI is a shared-string item: plain text or rich-text runs.
type xlsxSI struct {
	T *string `xml:"t"`
	R []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (si xlsxSI) text() string {
	var b strings.Builder
	if si.T != nil {
		b.WriteString(*si.T)
	}
	for _, r := range si.R {
		b.WriteString(r.T)
	}
	return b.String()
}

func parseSharedStrings(data []byte) ([]string, error) {
	var sst struct {
		SI []xlsxSI `xml:"si"`
	}
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, err
	}

	result := make([]string, len(sst.SI))
	for i, si := range sst.SI {
		result[i] = si.text()
	}
	return result, nil
}
