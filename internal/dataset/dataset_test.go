package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/taxroll-cli/internal/model"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = `Address,City,State,Zipcode,Property class,Sale date,Block & Lot,Owner
123 Main St,Springfield,NY,10001,CD,2023-05-01,12-34,Alice
456 Oak Ave,Brooklyn,NY,11201,CO,05/02/2023,56-78,Bob
`

func TestRead_CSV(t *testing.T) {
	table, err := Read(writeTempCSV(t, sampleCSV))
	require.NoError(t, err)
	require.Len(t, table.Records, 2)

	first := table.Records[0]
	assert.Equal(t, "123 Main St", first.Street)
	assert.Equal(t, "Springfield", first.City)
	assert.Equal(t, "NY", first.State)
	assert.Equal(t, "10001", first.Zip)
	assert.Equal(t, "CD", first.PropertyClass)
	assert.Equal(t, "Alice", first.Fields["Owner"])
	require.NotNil(t, first.SaleDate)
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), *first.SaleDate)

	second := table.Records[1]
	require.NotNil(t, second.SaleDate, "slash-format dates must parse")
	assert.Equal(t, 1, second.Index)
}

func TestRead_MissingRequiredColumn(t *testing.T) {
	path := writeTempCSV(t, "Address,City,State,Zipcode\n1 Main St,Troy,NY,12180\n")
	_, err := Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Property class")
}

func TestRead_EmptyFile(t *testing.T) {
	_, err := Read(writeTempCSV(t, ""))
	require.Error(t, err)
}

func TestRead_HeaderOnly(t *testing.T) {
	_, err := Read(writeTempCSV(t, "Address,City,State,Zipcode,Property class\n"))
	require.Error(t, err)
}

func TestRead_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := Read(path)
	require.Error(t, err)
}

func TestRead_RaggedRowPadded(t *testing.T) {
	table, err := Read(writeTempCSV(t, "Address,City,State,Zipcode,Property class\n1 Main St,Troy\n"))
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "", table.Records[0].Zip)
}

func TestRead_UnparseableSaleDateTolerated(t *testing.T) {
	table, err := Read(writeTempCSV(t,
		"Address,City,State,Zipcode,Property class,Sale date\n1 Main St,Troy,NY,12180,CD,sometime\n"))
	require.NoError(t, err)
	assert.Nil(t, table.Records[0].SaleDate)
}

func TestRead_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"Address", "City", "State", "Zipcode", "Property class"},
		{"123 Main St", "Springfield", "NY", "10001", "CD"},
	} {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	table, err := Read(path)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "Springfield", table.Records[0].City)
}

func sampleRecord(street, owner string) model.Record {
	return model.Record{
		Raw: model.RawRecord{
			Street: street, City: "Springfield", State: "NY", Zip: "10001",
			Fields: map[string]string{"Owner": owner, "Block & Lot": "12-34"},
		},
		Class:            "CD",
		ClassDescription: "Residential Condominium",
		ProcessedDate:    "May 1, 2023 at 9:00 AM",
		Resolution: model.ResolutionResult{
			Input:  street + ", Springfield, NY 10001",
			Status: model.StatusResolved,
			Source: model.SourceRegex,
			Normalized: &model.NormalizedAddress{
				Street: street, City: "Springfield", State: "NY", Zip: "10001",
			},
		},
	}
}

func TestBuildOutput_ColumnOrderAndPassthrough(t *testing.T) {
	headers := []string{"Address", "City", "State", "Zipcode", "Property class", "Block & Lot", "Owner"}
	out := BuildOutput(headers, []model.Record{sampleRecord("123 Main St", "Alice")})

	want := append(append([]string{}, OutputColumns...), "Owner")
	assert.Equal(t, want, out.Headers)
	assert.NotContains(t, out.Headers, "Block & Lot")

	require.Len(t, out.Rows, 1)
	row := out.Rows[0]
	assert.Equal(t, "123 Main St, Springfield, NY 10001", row[0])
	assert.Equal(t, "123 Main St", row[1])
	assert.Equal(t, "CD", row[5])
	assert.Equal(t, "Residential Condominium", row[6])
	assert.Equal(t, "Alice", row[8])
}

func TestBuildOutput_UnresolvedKeepsRawFields(t *testing.T) {
	rec := sampleRecord("123 Main St", "Alice")
	rec.Resolution = model.ResolutionResult{
		Input:  "123 Main St, Springfield, NY 10001",
		Status: model.StatusUnresolved,
	}
	out := BuildOutput([]string{"Address", "City", "State", "Zipcode", "Property class"}, []model.Record{rec})

	row := out.Rows[0]
	assert.Equal(t, "123 Main St, Springfield, NY 10001", row[0], "raw input preserved unchanged")
	assert.Equal(t, "123 Main St", row[1])
	assert.Equal(t, "Springfield", row[2])
}

func TestOutput_WriteCSVRoundTrip(t *testing.T) {
	out := BuildOutput(
		[]string{"Address", "City", "State", "Zipcode", "Property class"},
		[]model.Record{sampleRecord("123 Main St", "Alice")},
	)
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, out.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Full Address,Address,City,State,Zipcode")
	assert.Contains(t, string(data), "123 Main St, Springfield, NY 10001")
}

func TestOutput_WriteXLSX(t *testing.T) {
	out := BuildOutput(
		[]string{"Address", "City", "State", "Zipcode", "Property class"},
		[]model.Record{sampleRecord("123 Main St", "Alice")},
	)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, out.Write(path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, f.Sheets)
	assert.Equal(t, "Full Address", f.Sheets[0].Rows[0].Cells[0].String())
}
