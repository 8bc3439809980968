package reconcile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// LoadTable reads one tabular source file into rows and columns. The format
// is chosen by extension: delimited text (.csv/.tsv/.txt), legacy .xls
// workbooks, and .xlsx/.xlsm workbooks. The first non-empty row becomes the
// header; everything after it is data.
func LoadTable(path string) (*Table, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = readDelimited(path, ',')
	case ".tsv":
		rows, err = readDelimited(path, '\t')
	case ".xls":
		rows, err = readLegacyWorkbook(path)
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return nil, err
	}

	// Skip leading blank rows; vendors love a title banner above the header.
	start := -1
	for i, row := range rows {
		if !rowEmpty(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("empty table: %s", path)
	}
	return &Table{
		Source: filepath.Base(path),
		Header: rows[start],
		Rows:   rows[start+1:],
	}, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func readLegacyWorkbook(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet in %s", path)
	}
	rows := wb.ReadAllCells(100000)
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty worksheet in %s", path)
	}
	return rows, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("no worksheet in %s", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty worksheet in %s", path)
	}
	return rows, nil
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
