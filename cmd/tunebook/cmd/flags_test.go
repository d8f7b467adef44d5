package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

func TestFilterFlags_Parse(t *testing.T) {
	tests := []struct {
		name    string
		flags   filterFlags
		want    catalog.TuneFilter
		wantErr string
	}{
		{
			name: "empty",
		},
		{
			name:  "all set",
			flags: filterFlags{typ: " Slip Jig ", mode: "Dmajor", meter: "9/8"},
			want:  catalog.TuneFilter{Type: catalog.TypeSlipJig, Mode: catalog.ModeDMajor, Meter: catalog.MeterNineEight},
		},
		{
			name:    "unknown type",
			flags:   filterFlags{typ: "tango"},
			wantErr: `unknown type "tango"`,
		},
		{
			name:    "mode is case sensitive",
			flags:   filterFlags{mode: "dmajor"},
			wantErr: `unknown mode "dmajor"`,
		},
		{
			name:    "unknown meter",
			flags:   filterFlags{meter: "5/4"},
			wantErr: `unknown meter "5/4"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.parse()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var tbErr *tberrors.TBError
				require.ErrorAs(t, err, &tbErr)
				assert.Contains(t, tbErr.Suggestion, "Valid values:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildIngestInput(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		_, err := buildIngestInput(nil, "")
		require.Error(t, err)
		assert.Equal(t, tberrors.ErrCodeInvalidInput, tberrors.GetCode(err))
	})

	t.Run("inferred kinds", func(t *testing.T) {
		in, err := buildIngestInput([]string{"a.json", "https://x/tunes.json"}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.json", "https://x/tunes.json"}, in.URLs)
		assert.Empty(t, in.Sources)
	})

	t.Run("explicit kind", func(t *testing.T) {
		in, err := buildIngestInput([]string{"dump.json"}, "recordings")
		require.NoError(t, err)
		require.Len(t, in.Sources, 1)
		assert.Equal(t, "dump.json", in.Sources[0].Location)
		assert.Equal(t, catalog.KindRecordings, in.Sources[0].Kind)
		assert.Empty(t, in.URLs)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := buildIngestInput([]string{"dump.json"}, "composers")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "composers")
	})
}
