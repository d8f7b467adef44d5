// Package search answers catalog reads: fuzzy search, filtered listing and
// point lookup over the store and its fuzzy index.
package search

import (
	"github.com/tunebook/tunebook/internal/catalog"
	"github.com/tunebook/tunebook/internal/telemetry"
)

// DefaultLimit applies when a request leaves the limit unset.
const DefaultLimit = 50

// DefaultCacheSize is the number of distinct search requests cached.
const DefaultCacheSize = 256

// SearchOptions narrows a fuzzy search.
type SearchOptions struct {
	Limit int              `json:"limit,omitempty"`
	Type  catalog.TuneType `json:"type,omitempty"`
	Mode  catalog.Mode     `json:"mode,omitempty"`
	Meter catalog.Meter    `json:"meter,omitempty"`
}

// ListOptions pages through tunes in a fixed order.
type ListOptions struct {
	Type    catalog.TuneType `json:"type,omitempty"`
	Mode    catalog.Mode     `json:"mode,omitempty"`
	Meter   catalog.Meter    `json:"meter,omitempty"`
	Offset  int              `json:"offset,omitempty"`
	Limit   int              `json:"limit,omitempty"`
	OrderBy string           `json:"orderBy,omitempty"`
	Desc    bool             `json:"desc,omitempty"`
}

// Filter returns the equality filter of the options.
func (o SearchOptions) Filter() catalog.TuneFilter {
	return catalog.TuneFilter{Type: o.Type, Mode: o.Mode, Meter: o.Meter}
}

// Filter returns the equality filter of the options.
func (o ListOptions) Filter() catalog.TuneFilter {
	return catalog.TuneFilter{Type: o.Type, Mode: o.Mode, Meter: o.Meter}
}

// Stats describes the catalog at a point in time.
type Stats struct {
	Counts     map[catalog.Kind]int `json:"counts"`
	IndexBuilt bool                 `json:"indexBuilt"`
	IndexSize  int                  `json:"indexSize"`

	// Searches is filled in by the engine facade.
	Searches *telemetry.Snapshot `json:"searches,omitempty"`
}

// normalizeLimit applies DefaultLimit to unset or negative limits.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
