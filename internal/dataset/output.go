package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// OutputColumns is the fixed leading column order of the report.
// Passthrough columns from the input follow in their original order.
var OutputColumns = []string{
	"Full Address",
	ColAddress,
	ColCity,
	ColState,
	ColZipcode,
	ColPropertyClass,
	"Property Class Description",
	"Processed Date",
}

// Output is the final report table, ready to serialize.
type Output struct {
	Headers []string
	Rows    [][]string
}

// BuildOutput renders the surviving records against the input headers.
// Interpreted columns are replaced by their resolved values; the
// Block & Lot column is dropped; everything else passes through.
func BuildOutput(inputHeaders []string, records []model.Record) *Output {
	fixed := make(map[string]struct{}, len(OutputColumns)+1)
	for _, c := range OutputColumns {
		fixed[c] = struct{}{}
	}
	fixed[ColBlockLot] = struct{}{}

	var passthrough []string
	for _, h := range inputHeaders {
		if _, ok := fixed[h]; ok {
			continue
		}
		passthrough = append(passthrough, h)
	}

	headers := append(append([]string{}, OutputColumns...), passthrough...)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		street, city, state, zip := rec.Raw.Street, rec.Raw.City, rec.Raw.State, rec.Raw.Zip
		if rec.Resolution.Status == model.StatusResolved && rec.Resolution.Normalized != nil {
			n := rec.Resolution.Normalized
			street, city, state, zip = n.Street, n.City, n.State, n.Zip
		}

		row := []string{
			rec.FullAddress(),
			street,
			city,
			state,
			zip,
			rec.Class,
			rec.ClassDescription,
			rec.ProcessedDate,
		}
		for _, h := range passthrough {
			row = append(row, rec.Raw.Fields[h])
		}
		rows = append(rows, row)
	}

	return &Output{Headers: headers, Rows: rows}
}

// CSV serializes the output as a CSV byte slice.
func (o *Output) CSV() ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(o.Headers); err != nil {
		return nil, eris.Wrap(err, "dataset: write csv header")
	}
	if err := w.WriteAll(o.Rows); err != nil {
		return nil, eris.Wrap(err, "dataset: write csv rows")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "dataset: flush csv")
	}
	return []byte(sb.String()), nil
}

// Write serializes the output to path, as XLSX when the extension is
// .xlsx and CSV otherwise.
func (o *Output) Write(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return o.writeXLSX(path)
	}
	return o.writeCSV(path)
}

func (o *Output) writeCSV(path string) error {
	data, err := o.CSV()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}

func (o *Output) writeXLSX(path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Processed")
	if err != nil {
		return eris.Wrap(err, "dataset: add xlsx sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range o.Headers {
		headerRow.AddCell().SetString(h)
	}
	for _, row := range o.Rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "dataset: save %s", path)
	}
	return nil
}
