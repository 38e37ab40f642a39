package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taxroll-cli/internal/addrcache"
	"github.com/sells-group/taxroll-cli/internal/dataset"
	"github.com/sells-group/taxroll-cli/internal/model"
	"github.com/sells-group/taxroll-cli/internal/resolver"
	"github.com/sells-group/taxroll-cli/internal/taxclass"
)

var testHeaders = []string{"Address", "City", "State", "Zipcode", "Property class", "Sale date", "Owner"}

func testPipeline(t *testing.T, observe Observer) *Pipeline {
	t.Helper()
	cache := addrcache.Load(filepath.Join(t.TempDir(), "cache.json"))
	engine := resolver.New(cache, nil, resolver.Options{
		Workers: 2, ChunkSize: 25, ChunkPause: time.Millisecond,
	})
	return New(taxclass.NewFilter([]string{"CD", "C0", "B2"}), engine, observe)
}

func rawRecord(i int, class, street string, sale *time.Time) model.RawRecord {
	return model.RawRecord{
		Index:         i,
		PropertyClass: class,
		Street:        street,
		City:          "Springfield",
		State:         "NY",
		Zip:           "10001",
		SaleDate:      sale,
		Fields: map[string]string{
			"Address": street, "City": "Springfield", "State": "NY",
			"Zipcode": "10001", "Property class": class, "Owner": fmt.Sprintf("owner-%d", i),
		},
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRun_EndToEndCounts(t *testing.T) {
	// 100 rows: 40 whitelisted, 5 of those sharing one address.
	var records []model.RawRecord
	for i := 0; i < 60; i++ {
		records = append(records, rawRecord(len(records), "ZZ", fmt.Sprintf("%d Rejected Rd", i+1), nil))
	}
	for i := 0; i < 35; i++ {
		records = append(records, rawRecord(len(records), "CD", fmt.Sprintf("%d Main St", i+1), nil))
	}
	for i := 0; i < 5; i++ {
		records = append(records, rawRecord(len(records), "CD", "777 Shared Ave", datePtr(2023, time.January, i+1)))
	}
	require.Len(t, records, 100)

	p := testPipeline(t, nil)
	result, err := p.Run(context.Background(), &dataset.Table{Headers: testHeaders, Records: records})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Stats.Filter.TotalRecords)
	assert.Equal(t, 40, result.Stats.Filter.ValidRecords)
	assert.Equal(t, 4, result.Stats.DuplicatesRemoved)
	assert.Equal(t, 36, result.Stats.FinalRecords)
	assert.Len(t, result.Records, 36)
	assert.Len(t, result.Output.Rows, 36)
}

func TestRun_EmptyResultSignal(t *testing.T) {
	records := []model.RawRecord{
		rawRecord(0, "ZZ", "1 Main St", nil),
		rawRecord(1, "YY", "2 Main St", nil),
	}

	p := testPipeline(t, nil)
	_, err := p.Run(context.Background(), &dataset.Table{Headers: testHeaders, Records: records})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyResult), "zero whitelisted rows must yield the empty-result signal")
}

func TestRun_DedupeKeepsLatestSaleDate(t *testing.T) {
	older := rawRecord(0, "CD", "123 Main St", datePtr(2022, time.March, 1))
	newer := rawRecord(1, "CD", "123 Main St", datePtr(2023, time.July, 15))

	p := testPipeline(t, nil)
	result, err := p.Run(context.Background(), &dataset.Table{
		Headers: testHeaders,
		Records: []model.RawRecord{older, newer},
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.NotNil(t, result.Records[0].Raw.SaleDate)
	assert.Equal(t, 2023, result.Records[0].Raw.SaleDate.Year())
	assert.Equal(t, 1, result.Stats.DuplicatesRemoved)
}

func TestRun_DedupeTieKeepsFirstOccurrence(t *testing.T) {
	sale := datePtr(2023, time.July, 15)
	first := rawRecord(0, "CD", "123 Main St", sale)
	second := rawRecord(1, "CD", "123 Main St", sale)

	p := testPipeline(t, nil)
	result, err := p.Run(context.Background(), &dataset.Table{
		Headers: testHeaders,
		Records: []model.RawRecord{first, second},
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 0, result.Records[0].Raw.Index)
}

func TestRun_UnresolvedRecordsSurvive(t *testing.T) {
	rec := rawRecord(0, "CD", "", nil)
	rec.City, rec.State, rec.Zip = "", "", ""
	rec.Fields["Address"] = ""

	p := testPipeline(t, nil)
	result, err := p.Run(context.Background(), &dataset.Table{
		Headers: testHeaders,
		Records: []model.RawRecord{rec, rawRecord(1, "CD", "5 Oak St", nil)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Unresolved)
	assert.Equal(t, 1, result.Stats.Resolved)
	assert.Equal(t, 2, result.Stats.FinalRecords, "an unresolved record is kept, not dropped")
}

func TestRun_AnnotationApplied(t *testing.T) {
	p := testPipeline(t, nil)
	p.now = func() time.Time {
		return time.Date(2024, time.February, 3, 14, 30, 0, 0, time.UTC)
	}

	result, err := p.Run(context.Background(), &dataset.Table{
		Headers: testHeaders,
		Records: []model.RawRecord{rawRecord(0, "CO", "9 Elm St", nil)},
	})
	require.NoError(t, err)

	rec := result.Records[0]
	assert.Equal(t, "C0", rec.Class)
	assert.Equal(t, "Commercial Condominium", rec.ClassDescription)
	assert.Equal(t, "February 3, 2024 at 2:30 PM", rec.ProcessedDate)
}

func TestRun_ObserverSeesStageTransitions(t *testing.T) {
	var messages []string
	p := testPipeline(t, func(msg string) { messages = append(messages, msg) })

	_, err := p.Run(context.Background(), &dataset.Table{
		Headers: testHeaders,
		Records: []model.RawRecord{rawRecord(0, "CD", "1 Main St", nil)},
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(messages), 5)
	assert.Contains(t, messages[0], "Analyzing 1 records")
	assert.Contains(t, messages[len(messages)-1], "Processing complete")
}
