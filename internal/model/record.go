// Package model holds the shared domain types for the tax-roll pipeline.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RawRecord is one input row from a tax export, untouched after load.
// Fields holds every column keyed by header, including columns the
// pipeline does not interpret.
type RawRecord struct {
	Index         int // original row position, used for stable tie-breaks
	PropertyClass string
	Street        string
	City          string
	State         string
	Zip           string
	SaleDate      *time.Time
	Fields        map[string]string
}

// RawFullAddress renders the input address fields as a single query
// string, skipping empty components.
func (r RawRecord) RawFullAddress() string {
	var b strings.Builder
	for _, part := range []string{r.Street, r.City} {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(part)
	}
	tail := strings.TrimSpace(strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zip))
	if tail != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tail)
	}
	return b.String()
}

// NormalizedAddress is a fully decomposed US postal address. All four
// fields are non-empty when attached to a resolved result.
type NormalizedAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// FullAddress renders the canonical "street, city, state zip" form.
func (a NormalizedAddress) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.Zip)
}

// Complete reports whether all four components are present.
func (a NormalizedAddress) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.Zip != ""
}

// Source identifies which strategy produced a resolution result.
type Source string

const (
	SourceCache   Source = "cache"
	SourceRegex   Source = "regex"
	SourceManual  Source = "manual"
	SourceGeocode Source = "geocode"
)

// Status is the outcome of address resolution.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
)

// ResolutionResult is the immutable outcome of resolving one unique
// input address string.
type ResolutionResult struct {
	Input      string             `json:"input"`
	Normalized *NormalizedAddress `json:"normalized,omitempty"`
	Source     Source             `json:"source"`
	Status     Status             `json:"status"`
}

// FullAddress returns the canonical address for resolved results, or
// the original input unchanged for unresolved ones.
func (r ResolutionResult) FullAddress() string {
	if r.Status == StatusResolved && r.Normalized != nil {
		return r.Normalized.FullAddress()
	}
	return r.Input
}

// Record is a RawRecord joined with its resolution and canonical class.
// Created by the pipeline after filtering, mutated only by the resolve
// and annotate stages, immutable thereafter.
type Record struct {
	Raw              RawRecord
	Class            string
	ClassDescription string
	Resolution       ResolutionResult
	ProcessedDate    string
}

// FullAddress is the deduplication key for the record.
func (r Record) FullAddress() string {
	return r.Resolution.FullAddress()
}
