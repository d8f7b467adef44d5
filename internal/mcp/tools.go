package mcp

import (
	"strings"

	"github.com/tunebook/tunebook/internal/catalog"
)

// Result limits for the listing tools.
const (
	defaultToolLimit = 10
	maxToolLimit     = 100
)

// SearchTunesInput defines the input schema for the search_tunes tool.
type SearchTunesInput struct {
	Query string `json:"query" jsonschema:"tune title or alias to look up, typos are tolerated"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of tunes, default 10"`
	Type  string `json:"type,omitempty" jsonschema:"filter by tune type, e.g. reel, jig, slip jig, hornpipe"`
	Mode  string `json:"mode,omitempty" jsonschema:"filter by key and scale, e.g. Dmajor, Adorian"`
	Meter string `json:"meter,omitempty" jsonschema:"filter by time signature, e.g. 4/4, 6/8"`
}

// ListTunesInput defines the input schema for the list_tunes tool.
type ListTunesInput struct {
	Type    string `json:"type,omitempty" jsonschema:"filter by tune type, e.g. reel, jig"`
	Mode    string `json:"mode,omitempty" jsonschema:"filter by key and scale, e.g. Dmajor"`
	Meter   string `json:"meter,omitempty" jsonschema:"filter by time signature, e.g. 4/4"`
	OrderBy string `json:"order_by,omitempty" jsonschema:"sort field: title, popularity, createdAt, updatedAt or type"`
	Desc    bool   `json:"desc,omitempty" jsonschema:"sort in descending order"`
	Offset  int    `json:"offset,omitempty" jsonschema:"number of tunes to skip"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of tunes, default 10"`
}

// GetTuneInput defines the input schema for the get_tune tool.
type GetTuneInput struct {
	ID                string `json:"id" jsonschema:"tune id"`
	IncludeRecordings bool   `json:"include_recordings,omitempty" jsonschema:"also return the tune's recordings"`
}

// GetRecordingsInput defines the input schema for the get_recordings tool.
type GetRecordingsInput struct {
	TuneID string `json:"tune_id" jsonschema:"id of the tune whose recordings to list"`
}

// StatsInput defines the input schema for the catalog_stats tool (no parameters).
type StatsInput struct{}

// TuneOutput is a tune as returned to clients.
type TuneOutput struct {
	ID         string   `json:"id" jsonschema:"tune id"`
	Title      string   `json:"title" jsonschema:"primary title"`
	Type       string   `json:"type" jsonschema:"tune type"`
	Meter      string   `json:"meter,omitempty" jsonschema:"time signature"`
	Mode       string   `json:"mode,omitempty" jsonschema:"key and scale"`
	Aliases    []string `json:"aliases,omitempty" jsonschema:"alternative titles"`
	Popularity *int     `json:"popularity,omitempty" jsonschema:"number of tunebooks containing the tune"`
	ABC        string   `json:"abc,omitempty" jsonschema:"ABC notation, only in get_tune"`
}

// RecordingOutput is a recording as returned to clients.
type RecordingOutput struct {
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Track  string `json:"track,omitempty"`
}

// TunesOutput defines the output schema for search_tunes and list_tunes.
type TunesOutput struct {
	Tunes []TuneOutput `json:"tunes" jsonschema:"matching tunes, best match first for searches"`
	Count int          `json:"count" jsonschema:"number of tunes returned"`
}

// GetTuneOutput defines the output schema for the get_tune tool.
type GetTuneOutput struct {
	Tune       TuneOutput        `json:"tune"`
	Recordings []RecordingOutput `json:"recordings,omitempty"`
}

// RecordingsOutput defines the output schema for the get_recordings tool.
type RecordingsOutput struct {
	TuneID     string            `json:"tune_id"`
	Recordings []RecordingOutput `json:"recordings"`
}

// StatsOutput defines the output schema for the catalog_stats tool.
type StatsOutput struct {
	Tunes      int  `json:"tunes"`
	Aliases    int  `json:"aliases"`
	Popularity int  `json:"popularity"`
	Recordings int  `json:"recordings"`
	Sets       int  `json:"sets"`
	IndexBuilt bool `json:"index_built" jsonschema:"whether the fuzzy title index is ready"`
	IndexSize  int  `json:"index_size" jsonschema:"number of tunes in the fuzzy index"`

	Searches    int64    `json:"searches" jsonschema:"searches answered since the engine started"`
	ZeroResults int64    `json:"zero_results" jsonschema:"searches that found no tune"`
	TopTerms    []string `json:"top_terms,omitempty" jsonschema:"most searched words, most frequent first"`
}

// filterArgs holds the parsed type, mode and meter arguments.
type filterArgs struct {
	Type  catalog.TuneType
	Mode  catalog.Mode
	Meter catalog.Meter
}

// parseFilter validates the optional filter arguments of a tool call.
func parseFilter(typ, mode, meter string) (filterArgs, error) {
	var f filterArgs
	var ok bool

	if strings.TrimSpace(typ) != "" {
		if f.Type, ok = catalog.ParseTuneType(typ); !ok {
			return f, NewInvalidParamsError("unknown tune type: " + typ)
		}
	}
	if strings.TrimSpace(mode) != "" {
		if f.Mode, ok = catalog.ParseMode(mode); !ok {
			return f, NewInvalidParamsError("unknown mode: " + mode)
		}
	}
	if strings.TrimSpace(meter) != "" {
		if f.Meter, ok = catalog.ParseMeter(meter); !ok {
			return f, NewInvalidParamsError("unknown meter: " + meter)
		}
	}
	return f, nil
}

// ToTuneOutput converts a tune for the wire. The ABC body is only included
// when withABC is set.
func ToTuneOutput(t *catalog.Tune, withABC bool) TuneOutput {
	out := TuneOutput{
		ID:         t.ID,
		Title:      t.Title,
		Type:       string(t.Type),
		Meter:      string(t.Meter),
		Mode:       string(t.Mode),
		Aliases:    t.Aliases,
		Popularity: t.Popularity,
	}
	if withABC {
		out.ABC = t.ABC
	}
	return out
}

// ToRecordingOutputs converts recordings for the wire.
func ToRecordingOutputs(recs []*catalog.Recording) []RecordingOutput {
	out := make([]RecordingOutput, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecordingOutput{Artist: r.Artist, Album: r.Album, Track: r.Track})
	}
	return out
}

func toTunesOutput(tunes []*catalog.Tune) TunesOutput {
	out := TunesOutput{Tunes: make([]TuneOutput, 0, len(tunes))}
	for _, t := range tunes {
		out.Tunes = append(out.Tunes, ToTuneOutput(t, false))
	}
	out.Count = len(out.Tunes)
	return out
}
