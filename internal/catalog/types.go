package catalog

import "time"

// Tune is the primary entity: one musical piece.
type Tune struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Type  TuneType `json:"type"`
	Meter Meter    `json:"meter,omitempty"`
	Mode  Mode     `json:"mode,omitempty"`
	ABC   string   `json:"abc,omitempty"`

	// Aliases are the deduplicated alternative titles, in source order.
	Aliases []string `json:"aliases,omitempty"`

	// Popularity is the number of tunebooks containing the tune.
	Popularity *int `json:"popularity,omitempty"`

	// SearchText is the lower-cased title followed by the aliases.
	SearchText string `json:"searchText"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Recording is a released recording of a tune.
type Recording struct {
	ID        string `json:"id"`
	TuneID    string `json:"tuneId"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Track     string `json:"track,omitempty"`
	SourceRef string `json:"sourceRef,omitempty"`
}

// Alias is an alternative title. ID is "{tuneId}_alias_{index}".
type Alias struct {
	ID     string `json:"id"`
	TuneID string `json:"tuneId"`
	Alias  string `json:"alias"`
}

// Popularity is keyed by tune id.
type Popularity struct {
	TuneID    string `json:"tuneId"`
	Tunebooks int    `json:"tunebooks"`
}

// TuneSet is an ordered group of tunes played together. It references
// tunes by id without owning them.
type TuneSet struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	TuneIDs []string `json:"tuneIds"`
}

// Batch holds one normalized record set per kind.
type Batch struct {
	Tunes      []Tune       `json:"tunes"`
	Recordings []Recording  `json:"recordings"`
	Aliases    []Alias      `json:"aliases"`
	Popularity []Popularity `json:"popularity"`
	Sets       []TuneSet    `json:"sets"`
}

// Counts returns the number of records per kind, with every kind present.
func (b *Batch) Counts() map[Kind]int {
	return map[Kind]int{
		KindTunes:      len(b.Tunes),
		KindRecordings: len(b.Recordings),
		KindAliases:    len(b.Aliases),
		KindPopularity: len(b.Popularity),
		KindSets:       len(b.Sets),
	}
}

// TuneFilter selects tunes by exact categorical match. Zero fields match
// everything.
type TuneFilter struct {
	Type  TuneType `json:"type,omitempty"`
	Mode  Mode     `json:"mode,omitempty"`
	Meter Meter    `json:"meter,omitempty"`
}

// IsZero reports whether the filter matches every tune.
func (f TuneFilter) IsZero() bool {
	return f.Type == "" && f.Mode == "" && f.Meter == ""
}

// Match reports whether t satisfies every set field of f.
func (f TuneFilter) Match(t *Tune) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Mode != "" && t.Mode != f.Mode {
		return false
	}
	if f.Meter != "" && t.Meter != f.Meter {
		return false
	}
	return true
}
