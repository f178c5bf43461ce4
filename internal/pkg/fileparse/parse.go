// Package fileparse reads {name, contact} rows out of uploaded CSV and Excel files.
package fileparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Row is one normalized spreadsheet line. Values are trimmed but not validated.
type Row struct {
	Name    string
	Contact string
}

// DetectFormat picks the format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// Parser reads rows from files on disk.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads every non-blank data row of the file.
func (p *Parser) ParseFile(path string) ([]Row, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(path)
	case FormatExcel:
		records, err = readExcel(path)
	}
	if err != nil {
		return nil, err
	}

	return normalize(records), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// normalize maps raw cells to rows. A first line naming the name and contact
// columns is treated as a header; otherwise columns 0 and 1 are used.
func normalize(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}

	nameCol, contactCol := 0, 1
	start := 0
	if n, c, ok := headerColumns(records[0]); ok {
		nameCol, contactCol = n, c
		start = 1
	}

	rows := make([]Row, 0, len(records)-start)
	for _, rec := range records[start:] {
		row := Row{Name: cell(rec, nameCol), Contact: cell(rec, contactCol)}
		if row.Name == "" && row.Contact == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func headerColumns(header []string) (int, int, bool) {
	nameCol, contactCol := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case nameCol < 0 && strings.Contains(h, "name"):
			nameCol = i
		case contactCol < 0 && isContactHeader(h):
			contactCol = i
		}
	}
	return nameCol, contactCol, nameCol >= 0 && contactCol >= 0
}

func isContactHeader(h string) bool {
	for _, k := range []string{"contact", "phone", "mobile", "number"} {
		if strings.Contains(h, k) {
			return true
		}
	}
	return false
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
