// Package normalize turns raw source rows into canonical catalog records.
//
// Normalization never fails as a whole. A row that cannot be mapped is
// skipped and explained by a warning; the rest of the batch proceeds.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tunebook/tunebook/internal/catalog"
)

// dateLayouts are tried in order when parsing a raw date.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Result is the normalized batch plus the warnings accumulated while
// producing it, in encounter order.
type Result struct {
	catalog.Batch
	Warnings []string
}

// Normalizer converts raw batches. The zero value uses time.Now.
type Normalizer struct {
	// Now stamps UpdatedAt. Tests replace it.
	Now func() time.Time
}

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{Now: time.Now}
}

type warnings []string

func (w *warnings) add(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// Normalize runs every kind through its rules. Aliases and popularity go
// first because tunes consume their lookups.
func (n *Normalizer) Normalize(raw catalog.RawBatch) *Result {
	var w warnings

	aliases, aliasLookup := normalizeAliases(raw.Aliases, &w)
	popularity, popLookup := normalizePopularity(raw.Popularity, &w)
	tunes := n.normalizeTunes(raw.Tunes, aliasLookup, popLookup, &w)
	recordings := normalizeRecordings(raw.Recordings, &w)
	sets := normalizeSets(raw.Sets, &w)

	return &Result{
		Batch: catalog.Batch{
			Tunes:      tunes,
			Recordings: recordings,
			Aliases:    aliases,
			Popularity: popularity,
			Sets:       sets,
		},
		Warnings: w,
	}
}

// Normalize is a convenience wrapper around New().Normalize.
func Normalize(raw catalog.RawBatch) *Result {
	return New().Normalize(raw)
}

func normalizeAliases(rows []catalog.RawAlias, w *warnings) ([]catalog.Alias, map[string][]string) {
	lookup := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	var order []string

	for i, row := range rows {
		tuneID := row.TuneID.Trim()
		if tuneID == "" {
			w.add("Alias at position %d has no tune_id - will be excluded", i)
			continue
		}
		text := norm.NFC.String(row.Alias.Trim())
		if text == "" {
			w.add("Alias at position %d for tune %s is empty - will be excluded", i, tuneID)
			continue
		}
		set, ok := seen[tuneID]
		if !ok {
			set = make(map[string]struct{})
			seen[tuneID] = set
			order = append(order, tuneID)
		}
		if _, dup := set[text]; dup {
			continue
		}
		set[text] = struct{}{}
		lookup[tuneID] = append(lookup[tuneID], text)
	}

	var out []catalog.Alias
	for _, tuneID := range order {
		for i, text := range lookup[tuneID] {
			out = append(out, catalog.Alias{
				ID:     fmt.Sprintf("%s_alias_%d", tuneID, i),
				TuneID: tuneID,
				Alias:  text,
			})
		}
	}
	return out, lookup
}

func normalizePopularity(rows []catalog.RawPopularity, w *warnings) ([]catalog.Popularity, map[string]int) {
	lookup := make(map[string]int)
	index := make(map[string]int)
	var out []catalog.Popularity

	for i, row := range rows {
		tuneID := row.TuneID.Trim()
		if tuneID == "" {
			w.add("Popularity row at position %d has no tune_id - will be excluded", i)
			continue
		}
		count, err := leadingInt(row.Tunebooks.String())
		if err != nil || count < 0 {
			w.add("Invalid tunebooks count for tune %s: %q", tuneID, row.Tunebooks.String())
			continue
		}
		if j, dup := index[tuneID]; dup {
			out[j].Tunebooks = count
		} else {
			index[tuneID] = len(out)
			out = append(out, catalog.Popularity{TuneID: tuneID, Tunebooks: count})
		}
		lookup[tuneID] = count
	}
	return out, lookup
}

func (n *Normalizer) normalizeTunes(rows []catalog.RawTune, aliases map[string][]string, popularity map[string]int, w *warnings) []catalog.Tune {
	now := time.Now
	if n != nil && n.Now != nil {
		now = n.Now
	}
	updated := now().UTC()

	seen := make(map[string]struct{})
	var out []catalog.Tune

	for i, row := range rows {
		id := row.TuneID.Trim()
		if id == "" {
			w.add("Tune at position %d has no tune_id - will be excluded", i)
			continue
		}

		tuneType, ok := catalog.ParseTuneType(row.Type.String())
		if !ok {
			w.add("Unknown tune type: %q - will be excluded", row.Type.String())
			continue
		}

		// One row per setting; the first setting wins.
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		tune := catalog.Tune{
			ID:      id,
			Title:   norm.NFC.String(row.Name.Trim()),
			Type:    tuneType,
			Meter:   parseMeter(row.Meter, w),
			Mode:    parseMode(row.Mode, w),
			ABC:     row.ABC.String(),
			Aliases: aliases[id],
		}
		if count, ok := popularity[id]; ok {
			c := count
			tune.Popularity = &c
		}
		tune.SearchText = searchText(tune.Title, tune.Aliases)

		if !row.Date.Blank() {
			if ts, ok := parseDate(row.Date.Trim()); ok {
				tune.CreatedAt = &ts
			} else {
				w.add("Invalid date for tune %s: %q - will be ignored", id, row.Date.String())
			}
		}
		u := updated
		tune.UpdatedAt = &u

		out = append(out, tune)
	}
	return out
}

func parseMeter(raw catalog.FlexString, w *warnings) catalog.Meter {
	if raw.Blank() {
		return ""
	}
	m, ok := catalog.ParseMeter(raw.String())
	if !ok {
		w.add("Unknown time signature: %q - will be ignored", raw.String())
		return ""
	}
	return m
}

func parseMode(raw catalog.FlexString, w *warnings) catalog.Mode {
	if raw.Blank() {
		return ""
	}
	m, ok := catalog.ParseMode(raw.String())
	if !ok {
		w.add("Unknown tune mode: %q - will be ignored", raw.String())
		return ""
	}
	return m
}

// leadingInt reads an optionally signed run of digits at the start of s,
// ignoring whatever follows, so "3.5" is 3 and "12 books" is 12.
func leadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	return strconv.Atoi(s[:end])
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func searchText(title string, aliases []string) string {
	parts := make([]string, 0, len(aliases)+1)
	parts = append(parts, title)
	parts = append(parts, aliases...)
	return strings.ToLower(strings.Join(parts, " "))
}

func normalizeRecordings(rows []catalog.RawRecording, w *warnings) []catalog.Recording {
	var out []catalog.Recording
	for i, row := range rows {
		id := row.ID.Trim()
		if id == "" {
			w.add("Recording at position %d has no id - will be excluded", i)
			continue
		}
		tuneID := row.TuneID.Trim()
		if tuneID == "" {
			w.add("Recording %s has no tune_id - will be excluded", id)
			continue
		}
		out = append(out, catalog.Recording{
			ID:        id,
			TuneID:    tuneID,
			Artist:    row.Artist.Trim(),
			Album:     row.Recording.Trim(),
			Track:     row.Track.Trim(),
			SourceRef: row.Number.Trim(),
		})
	}
	return out
}

type setMember struct {
	order int
	row   catalog.RawSetRow
}

func normalizeSets(rows []catalog.RawSetRow, w *warnings) []catalog.TuneSet {
	groups := make(map[string][]catalog.RawSetRow)
	var order []string
	for i, row := range rows {
		id := row.TuneSet.Trim()
		if id == "" {
			w.add("Set row at position %d has no tuneset - will be excluded", i)
			continue
		}
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], row)
	}

	var out []catalog.TuneSet
	for _, id := range order {
		set, err := buildSet(id, groups[id])
		if err != nil {
			w.add("Error processing tune set %s: %v", id, err)
			continue
		}
		out = append(out, set)
	}
	return out
}

func buildSet(id string, rows []catalog.RawSetRow) (catalog.TuneSet, error) {
	members := make([]setMember, 0, len(rows))
	for _, row := range rows {
		o, err := leadingInt(row.SettingOrder.String())
		if err != nil {
			return catalog.TuneSet{}, fmt.Errorf("invalid settingorder %q", row.SettingOrder.String())
		}
		members = append(members, setMember{order: o, row: row})
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].order < members[j].order
	})

	set := catalog.TuneSet{
		ID:      id,
		Name:    strings.TrimSpace(members[0].row.Name.String()),
		TuneIDs: make([]string, 0, len(members)),
	}
	for _, m := range members {
		set.TuneIDs = append(set.TuneIDs, m.row.TuneID.Trim())
	}
	return set, nil
}
