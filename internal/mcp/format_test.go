package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestFormatTunes_Basic(t *testing.T) {
	// Given: two search hits
	out := TunesOutput{
		Tunes: []TuneOutput{
			{ID: "1", Title: "The Kesh", Type: "jig", Meter: "6/8", Mode: "Gmajor", Aliases: []string{"Kesh Jig"}},
			{ID: "2", Title: "Kesh Mountain", Type: "reel"},
		},
		Count: 2,
	}

	// When: formatting them
	markdown := FormatTunes(`"kesh"`, out)

	// Then: each tune appears with its id and attributes
	assert.Contains(t, markdown, `## Tunes for "kesh"`)
	assert.Contains(t, markdown, "Found 2 tunes")
	assert.Contains(t, markdown, "1. **The Kesh** (id `1`) - jig, 6/8, Gmajor")
	assert.Contains(t, markdown, "Also known as: Kesh Jig")
	assert.Contains(t, markdown, "2. **Kesh Mountain** (id `2`) - reel")
}

func TestFormatTunes_Singular(t *testing.T) {
	markdown := FormatTunes("reel", TunesOutput{Tunes: []TuneOutput{{ID: "1", Title: "Drowsy Maggie"}}, Count: 1})

	assert.Contains(t, markdown, "Found 1 tune\n")
}

func TestFormatTunes_Empty(t *testing.T) {
	markdown := FormatTunes(`"zzz"`, TunesOutput{})

	assert.Equal(t, `No tunes found for "zzz"`, markdown)
}

func TestFormatTune_Full(t *testing.T) {
	// Given: a tune with ABC and a recording
	out := GetTuneOutput{
		Tune: TuneOutput{
			ID:         "55",
			Title:      "Drowsy Maggie",
			Type:       "reel",
			Meter:      "4/4",
			Mode:       "Edorian",
			Popularity: intPtr(1234),
			ABC:        "|:E2BE dEBE|E2BE AFDF:|\n",
		},
		Recordings: []RecordingOutput{{Artist: "Altan", Album: "Harvest Storm", Track: "Drowsy Maggie"}},
	}

	// When: formatting it
	markdown := FormatTune(out)

	// Then: fields, ABC block and recordings are all present
	assert.Contains(t, markdown, "## Drowsy Maggie")
	assert.Contains(t, markdown, "- **ID:** `55`")
	assert.Contains(t, markdown, "- **Mode:** Edorian")
	assert.Contains(t, markdown, "- **Tunebooks:** 1234")
	assert.Contains(t, markdown, "```abc\n|:E2BE dEBE|E2BE AFDF:|\n```")
	assert.Contains(t, markdown, "### Recordings (1)")
	assert.Contains(t, markdown, "| Altan | Harvest Storm | Drowsy Maggie |")
}

func TestFormatTune_OmitsEmptyFields(t *testing.T) {
	markdown := FormatTune(GetTuneOutput{Tune: TuneOutput{ID: "9", Title: "Untitled", Type: "polka"}})

	assert.NotContains(t, markdown, "Meter")
	assert.NotContains(t, markdown, "Tunebooks")
	assert.NotContains(t, markdown, "```abc")
	assert.NotContains(t, markdown, "Recordings")
}

func TestFormatRecordings_EscapesPipes(t *testing.T) {
	markdown := FormatRecordings(RecordingsOutput{
		TuneID:     "1",
		Recordings: []RecordingOutput{{Artist: "A|B", Album: "Live", Track: "1"}},
	})

	assert.Contains(t, markdown, `| A\|B | Live | 1 |`)
}

func TestFormatRecordings_Empty(t *testing.T) {
	assert.Equal(t, "No recordings of tune `7`", FormatRecordings(RecordingsOutput{TuneID: "7"}))
}

func TestFormatStats(t *testing.T) {
	built := FormatStats(StatsOutput{Tunes: 3, Recordings: 2, IndexBuilt: true, IndexSize: 3})
	assert.Contains(t, built, "| tunes | 3 |")
	assert.Contains(t, built, "| recordings | 2 |")
	assert.Contains(t, built, "Fuzzy index ready with 3 tunes.")

	empty := FormatStats(StatsOutput{})
	assert.Contains(t, empty, "Fuzzy index not built yet.")
	assert.NotContains(t, empty, "Answered")

	searched := FormatStats(StatsOutput{Searches: 12, ZeroResults: 2, TopTerms: []string{"reel", "kesh"}})
	assert.Contains(t, searched, "Answered 12 searches, 2 without results.")
	assert.Contains(t, searched, "Most searched: reel, kesh")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{0, 10},
		{-5, 10},
		{1, 1},
		{25, 25},
		{500, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, defaultToolLimit, 1, maxToolLimit), "limit %d", tt.limit)
	}
}
