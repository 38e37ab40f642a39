// Package pipeline drives a processing run through its fixed stages:
// filter, resolve, deduplicate, annotate.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/dataset"
	"github.com/sells-group/taxroll-cli/internal/model"
	"github.com/sells-group/taxroll-cli/internal/resolver"
	"github.com/sells-group/taxroll-cli/internal/taxclass"
)

// ErrEmptyResult signals a run that finished with nothing to report:
// no whitelisted tax classes survived filtering. Distinct from a hard
// failure; callers should present it as an empty outcome, not an error
// trace.
var ErrEmptyResult = eris.New("pipeline: no records with whitelisted tax classes")

// Observer receives one progress message per stage transition. It is
// the pipeline's only outward-facing hook; the CLI logs the messages,
// a server could stream them.
type Observer func(message string)

// processedDateLayout matches the report's human-readable timestamp.
const processedDateLayout = "January 2, 2006 at 3:04 PM"

// Pipeline owns the record set for the lifetime of one run. Stages are
// strictly sequential; only resolution fans out internally.
type Pipeline struct {
	filter  *taxclass.Filter
	engine  *resolver.Engine
	observe Observer
	now     func() time.Time
}

// Result is the completed run: the surviving records, the rendered
// output table, and the derived statistics snapshot.
type Result struct {
	Records []model.Record
	Output  *dataset.Output
	Stats   model.PipelineStats
}

// New creates a pipeline. A nil observer is replaced with a no-op.
func New(filter *taxclass.Filter, engine *resolver.Engine, observe Observer) *Pipeline {
	if observe == nil {
		observe = func(string) {}
	}
	return &Pipeline{
		filter:  filter,
		engine:  engine,
		observe: observe,
		now:     time.Now,
	}
}

// Run processes a loaded table to completion. Per-record problems are
// absorbed into statistics; only whole-batch failures return an error,
// and ErrEmptyResult marks the no-valid-records outcome.
func (p *Pipeline) Run(ctx context.Context, table *dataset.Table) (*Result, error) {
	p.observe(fmt.Sprintf("Analyzing %d records...", len(table.Records)))

	records := make([]model.Record, 0, len(table.Records))
	for _, raw := range table.Records {
		records = append(records, model.Record{Raw: raw})
	}

	// Filter.
	valid, _, filterStats := p.filter.Partition(records)
	p.observe(filterMessage(filterStats))
	if len(valid) == 0 {
		return nil, ErrEmptyResult
	}

	// Resolve.
	addresses := make([]string, 0, len(valid))
	for _, rec := range valid {
		addresses = append(addresses, rec.Raw.RawFullAddress())
	}
	p.observe(fmt.Sprintf("Resolving %d addresses (%d unique)...", len(addresses), countUnique(addresses)))

	resolutions, err := p.engine.ResolveBatch(ctx, addresses)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve addresses")
	}

	var resolved, unresolved int
	for i := range valid {
		res, ok := resolutions[valid[i].Raw.RawFullAddress()]
		if !ok {
			res = model.ResolutionResult{Input: valid[i].Raw.RawFullAddress(), Status: model.StatusUnresolved}
		}
		valid[i].Resolution = res
		if res.Status == model.StatusResolved {
			resolved++
		} else {
			unresolved++
		}
	}
	p.observe(fmt.Sprintf("Resolved %d of %d addresses.", resolved, resolved+unresolved))

	// Deduplicate: most recent sale date wins, original order breaks ties.
	deduped := deduplicate(valid)
	duplicates := len(valid) - len(deduped)
	p.observe(fmt.Sprintf("Removed %d duplicate addresses.", duplicates))

	// Annotate.
	processedDate := p.now().Format(processedDateLayout)
	for i := range deduped {
		deduped[i].ClassDescription = taxclass.Describe(deduped[i].Class)
		deduped[i].ProcessedDate = processedDate
	}

	stats := model.PipelineStats{
		Filter:            filterStats,
		Resolved:          resolved,
		Unresolved:        unresolved,
		DuplicatesRemoved: duplicates,
		FinalRecords:      len(deduped),
	}

	p.observe(fmt.Sprintf(
		"Processing complete: %d input, %d valid, %d duplicates removed, %d final.",
		stats.Filter.TotalRecords, stats.Filter.ValidRecords, stats.DuplicatesRemoved, stats.FinalRecords,
	))

	return &Result{
		Records: deduped,
		Output:  dataset.BuildOutput(table.Headers, deduped),
		Stats:   stats,
	}, nil
}

// deduplicate keeps one record per canonical full address: stable sort
// by sale date descending, then first occurrence wins.
func deduplicate(records []model.Record) []model.Record {
	sorted := make([]model.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Raw.SaleDate, sorted[j].Raw.SaleDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.After(*dj)
		}
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]model.Record, 0, len(sorted))
	for _, rec := range sorted {
		key := rec.FullAddress()
		if _, dup := seen[key]; dup {
			zap.L().Debug("pipeline: dropping duplicate address", zap.String("address", key))
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func filterMessage(stats model.FilterStats) string {
	pct := 0.0
	if stats.TotalRecords > 0 {
		pct = float64(stats.ValidRecords) / float64(stats.TotalRecords) * 100
	}
	return fmt.Sprintf("Tax class filter: %d of %d records valid (%.1f%%), %d filtered out.",
		stats.ValidRecords, stats.TotalRecords, pct, stats.FilteredOut)
}

func countUnique(values []string) int {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return len(set)
}
