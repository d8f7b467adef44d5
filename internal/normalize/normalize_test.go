package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return &Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestNormalize_UnknownTypeExcluded(t *testing.T) {
	raw := catalog.RawBatch{Tunes: []catalog.RawTune{
		{TuneID: "1", Name: "The Kesh", Type: "jig"},
		{TuneID: "2", Name: "Odd One", Type: "hop jig"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 1)
	assert.Equal(t, "1", res.Tunes[0].ID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"hop jig"`)
	assert.Contains(t, res.Warnings[0], "will be excluded")
}

func TestNormalize_UnknownMeterAndModeRetained(t *testing.T) {
	raw := catalog.RawBatch{Tunes: []catalog.RawTune{
		{TuneID: "1", Name: "Reel", Type: "Reel", Meter: "5/4", Mode: "Hlydian"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 1)
	tune := res.Tunes[0]
	assert.Equal(t, catalog.TypeReel, tune.Type)
	assert.Empty(t, tune.Meter)
	assert.Empty(t, tune.Mode)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, `Unknown time signature: "5/4" - will be ignored`, res.Warnings[0])
	assert.Equal(t, `Unknown tune mode: "Hlydian" - will be ignored`, res.Warnings[1])
}

func TestNormalize_BlankMeterNoWarning(t *testing.T) {
	raw := catalog.RawBatch{Tunes: []catalog.RawTune{
		{TuneID: "1", Name: "Reel", Type: "reel", Meter: "  ", Mode: ""},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 1)
	assert.Empty(t, res.Warnings)
}

func TestNormalize_AliasesFoldedIntoTune(t *testing.T) {
	raw := catalog.RawBatch{
		Tunes: []catalog.RawTune{{TuneID: "1", Name: " Kesh Jig ", Type: "reel", Meter: "4/4"}},
		Aliases: []catalog.RawAlias{
			{TuneID: "1", Alias: "The Kesh"},
			{TuneID: "1", Alias: "The Kesh "},
			{TuneID: "1", Alias: "the kesh"},
		},
	}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 1)
	tune := res.Tunes[0]
	assert.Equal(t, "Kesh Jig", tune.Title)
	assert.Equal(t, catalog.MeterFourFour, tune.Meter)
	assert.Equal(t, []string{"The Kesh", "the kesh"}, tune.Aliases)
	assert.Equal(t, "kesh jig the kesh the kesh", tune.SearchText)

	require.Len(t, res.Aliases, 2)
	assert.Equal(t, "1_alias_0", res.Aliases[0].ID)
	assert.Equal(t, "1_alias_1", res.Aliases[1].ID)
}

func TestNormalize_PopularityInvalid(t *testing.T) {
	raw := catalog.RawBatch{
		Tunes: []catalog.RawTune{{TuneID: "7", Name: "X", Type: "polka"}},
		Popularity: []catalog.RawPopularity{
			{TuneID: "7", Tunebooks: "abc"},
			{TuneID: "8", Tunebooks: "-3"},
		},
	}

	res := newTestNormalizer().Normalize(raw)

	assert.Empty(t, res.Popularity)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "7")
	assert.Contains(t, res.Warnings[0], `"abc"`)
	require.Len(t, res.Tunes, 1)
	assert.Nil(t, res.Tunes[0].Popularity)
}

func TestNormalize_PopularityFolded(t *testing.T) {
	raw := catalog.RawBatch{
		Tunes:      []catalog.RawTune{{TuneID: "7", Name: "X", Type: "polka"}},
		Popularity: []catalog.RawPopularity{{TuneID: "7", Tunebooks: " 42 "}},
	}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Popularity, 1)
	assert.Equal(t, 42, res.Popularity[0].Tunebooks)
	require.NotNil(t, res.Tunes[0].Popularity)
	assert.Equal(t, 42, *res.Tunes[0].Popularity)
}

func TestNormalize_PopularityLeadingDigits(t *testing.T) {
	raw := catalog.RawBatch{
		Tunes: []catalog.RawTune{
			{TuneID: "7", Name: "X", Type: "polka"},
			{TuneID: "8", Name: "Y", Type: "reel"},
		},
		Popularity: []catalog.RawPopularity{
			{TuneID: "7", Tunebooks: "3.5"},
			{TuneID: "8", Tunebooks: "12 books"},
		},
	}

	res := newTestNormalizer().Normalize(raw)

	assert.Empty(t, res.Warnings)
	require.Len(t, res.Popularity, 2)
	assert.Equal(t, 3, res.Popularity[0].Tunebooks)
	assert.Equal(t, 12, res.Popularity[1].Tunebooks)
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "42", want: 42},
		{in: " 7 ", want: 7},
		{in: "3.5", want: 3},
		{in: "12 books", want: 12},
		{in: "+4", want: 4},
		{in: "-3", want: -3},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "-", wantErr: true},
		{in: "x12", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := leadingInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_DuplicateSettingsFold(t *testing.T) {
	raw := catalog.RawBatch{Tunes: []catalog.RawTune{
		{TuneID: "1", SettingID: "10", Name: "First", Type: "jig", ABC: "abc1"},
		{TuneID: "1", SettingID: "11", Name: "Second", Type: "jig", ABC: "abc2"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 1)
	assert.Equal(t, "abc1", res.Tunes[0].ABC)
}

func TestNormalize_Dates(t *testing.T) {
	raw := catalog.RawBatch{Tunes: []catalog.RawTune{
		{TuneID: "1", Name: "A", Type: "jig", Date: "2001-05-04 10:11:12"},
		{TuneID: "2", Name: "B", Type: "jig", Date: "yesterday"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Tunes, 2)
	require.NotNil(t, res.Tunes[0].CreatedAt)
	assert.Equal(t, time.Date(2001, 5, 4, 10, 11, 12, 0, time.UTC), *res.Tunes[0].CreatedAt)
	assert.Nil(t, res.Tunes[1].CreatedAt)
	require.NotNil(t, res.Tunes[1].UpdatedAt)
	assert.Equal(t, fixedNow, *res.Tunes[1].UpdatedAt)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "yesterday")
}

func TestNormalize_Recordings(t *testing.T) {
	raw := catalog.RawBatch{Recordings: []catalog.RawRecording{
		{ID: "r1", TuneID: "1", Artist: "Planxty", Recording: "The Well Below The Valley", Track: "3", Number: "2"},
		{ID: "r2", Artist: "Nobody"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Recordings, 1)
	rec := res.Recordings[0]
	assert.Equal(t, "1", rec.TuneID)
	assert.Equal(t, "The Well Below The Valley", rec.Album)
	assert.Equal(t, "2", rec.SourceRef)
	assert.Equal(t, []string{"Recording r2 has no tune_id - will be excluded"}, res.Warnings)
}

func TestNormalize_Sets(t *testing.T) {
	raw := catalog.RawBatch{Sets: []catalog.RawSetRow{
		{TuneSet: "s1", SettingOrder: "2", TuneID: "b", Name: "Second"},
		{TuneSet: "s2", SettingOrder: "x", TuneID: "z"},
		{TuneSet: "s1", SettingOrder: "1", TuneID: "a", Name: "First"},
		{TuneSet: "s1", SettingOrder: "10th", TuneID: "c"},
	}}

	res := newTestNormalizer().Normalize(raw)

	require.Len(t, res.Sets, 1)
	assert.Equal(t, "s1", res.Sets[0].ID)
	assert.Equal(t, "First", res.Sets[0].Name)
	assert.Equal(t, []string{"a", "b", "c"}, res.Sets[0].TuneIDs)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Error processing tune set s2")
}

func TestNormalize_MissingKeys(t *testing.T) {
	raw := catalog.RawBatch{
		Tunes:      []catalog.RawTune{{Name: "No Id", Type: "reel"}},
		Aliases:    []catalog.RawAlias{{Alias: "Orphan"}},
		Popularity: []catalog.RawPopularity{{Tunebooks: "3"}},
		Recordings: []catalog.RawRecording{{TuneID: "1"}},
		Sets:       []catalog.RawSetRow{{SettingOrder: "1", TuneID: "1"}},
	}

	res := newTestNormalizer().Normalize(raw)

	counts := res.Counts()
	for _, k := range catalog.AllKinds {
		assert.Zero(t, counts[k], k)
	}
	assert.Len(t, res.Warnings, 5)
}

func TestNormalize_Empty(t *testing.T) {
	res := Normalize(catalog.RawBatch{})
	assert.Empty(t, res.Warnings)
	assert.Zero(t, len(res.Tunes)+len(res.Aliases))
}
