// Package dataset reads tax-export tables from CSV or XLSX files and
// writes the processed output.
package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// Column names the pipeline interprets. Everything else passes through.
const (
	ColAddress       = "Address"
	ColCity          = "City"
	ColState         = "State"
	ColZipcode       = "Zipcode"
	ColPropertyClass = "Property class"
	ColSaleDate      = "Sale date"
	ColBlockLot      = "Block & Lot"
)

var requiredColumns = []string{ColAddress, ColCity, ColState, ColZipcode, ColPropertyClass}

// saleDateLayouts are tried in order when parsing the Sale date column.
var saleDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Table is a loaded input file: the original header row plus one
// RawRecord per data row.
type Table struct {
	Headers []string
	Records []model.RawRecord
}

// Read loads a table from path, dispatching on the file extension
// (.csv or .xlsx). It fails on unreadable files, a missing required
// column, or zero data rows — all whole-batch structural errors.
func Read(path string) (*Table, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("dataset: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return fromRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are padded later
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv")
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: xlsx file has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("dataset: input file is empty")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	for _, required := range requiredColumns {
		if _, ok := index[required]; !ok {
			return nil, eris.Errorf("dataset: missing required column %q", required)
		}
	}

	if len(rows) < 2 {
		return nil, eris.New("dataset: input file has no data rows")
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		fields := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			} else {
				fields[h] = ""
			}
		}

		rec := model.RawRecord{
			Index:         i,
			PropertyClass: fields[ColPropertyClass],
			Street:        fields[ColAddress],
			City:          fields[ColCity],
			State:         fields[ColState],
			Zip:           fields[ColZipcode],
			Fields:        fields,
		}
		if raw, ok := fields[ColSaleDate]; ok && raw != "" {
			rec.SaleDate = parseSaleDate(raw)
		}
		records = append(records, rec)
	}

	return &Table{Headers: headers, Records: records}, nil
}

// parseSaleDate tries the known layouts. A date that parses with none
// of them is malformed input: tolerated locally, the record simply has
// no date for the dedupe sort.
func parseSaleDate(raw string) *time.Time {
	for _, layout := range saleDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	zap.L().Debug("dataset: unparseable sale date", zap.String("value", raw))
	return nil
}
