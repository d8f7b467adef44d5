package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexString is a string field that tolerates whatever scalar type a source
// happens to emit. Numbers and booleans keep their JSON text; null decodes
// to the empty string. Objects and arrays are rejected.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", kindOfJSON(data[0]))
	default:
		*f = FlexString(data)
		return nil
	}
}

// String returns the raw value.
func (f FlexString) String() string { return string(f) }

// Trim returns the value with surrounding whitespace removed.
func (f FlexString) Trim() string { return strings.TrimSpace(string(f)) }

// Blank reports whether the value is empty after trimming.
func (f FlexString) Blank() bool { return f.Trim() == "" }

func kindOfJSON(c byte) string {
	switch c {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// RawTune is one row of the tunes dump. The source emits one row per
// setting, so a tune id may repeat.
type RawTune struct {
	TuneID    FlexString `json:"tune_id"`
	SettingID FlexString `json:"setting_id"`
	Name      FlexString `json:"name"`
	Type      FlexString `json:"type"`
	Meter     FlexString `json:"meter"`
	Mode      FlexString `json:"mode"`
	ABC       FlexString `json:"abc"`
	Date      FlexString `json:"date"`
	Username  FlexString `json:"username"`
}

// RawRecording is one track of a released recording.
type RawRecording struct {
	ID        FlexString `json:"id"`
	Artist    FlexString `json:"artist"`
	Recording FlexString `json:"recording"`
	Track     FlexString `json:"track"`
	Number    FlexString `json:"number"`
	Tune      FlexString `json:"tune"`
	TuneID    FlexString `json:"tune_id"`
}

// RawAlias is one alternative title row.
type RawAlias struct {
	TuneID FlexString `json:"tune_id"`
	Alias  FlexString `json:"alias"`
	Name   FlexString `json:"name"`
}

// RawPopularity carries the tunebook count as a numeric string.
type RawPopularity struct {
	Name      FlexString `json:"name"`
	TuneID    FlexString `json:"tune_id"`
	Tunebooks FlexString `json:"tunebooks"`
}

// RawSetRow is one member of a tune set.
type RawSetRow struct {
	TuneSet      FlexString `json:"tuneset"`
	Date         FlexString `json:"date"`
	MemberID     FlexString `json:"member_id"`
	Username     FlexString `json:"username"`
	SettingOrder FlexString `json:"settingorder"`
	Name         FlexString `json:"name"`
	TuneID       FlexString `json:"tune_id"`
	SettingID    FlexString `json:"setting_id"`
	Type         FlexString `json:"type"`
	Meter        FlexString `json:"meter"`
	Mode         FlexString `json:"mode"`
	ABC          FlexString `json:"abc"`
}

// RawBatch groups raw rows by kind. Any slice may be nil.
type RawBatch struct {
	Tunes      []RawTune       `json:"tunes,omitempty"`
	Aliases    []RawAlias      `json:"aliases,omitempty"`
	Popularity []RawPopularity `json:"popularity,omitempty"`
	Recordings []RawRecording  `json:"recordings,omitempty"`
	Sets       []RawSetRow     `json:"sets,omitempty"`
}

// Append concatenates other onto b, kind by kind.
func (b *RawBatch) Append(other RawBatch) {
	b.Tunes = append(b.Tunes, other.Tunes...)
	b.Aliases = append(b.Aliases, other.Aliases...)
	b.Popularity = append(b.Popularity, other.Popularity...)
	b.Recordings = append(b.Recordings, other.Recordings...)
	b.Sets = append(b.Sets, other.Sets...)
}

// Len returns the total number of raw rows.
func (b *RawBatch) Len() int {
	return len(b.Tunes) + len(b.Aliases) + len(b.Popularity) + len(b.Recordings) + len(b.Sets)
}

// DecodeElement decodes a single JSON element of the given kind and appends
// it to b.
func (b *RawBatch) DecodeElement(kind Kind, data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty element")
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("expected object, got %s", kindOfJSON(trimmed[0]))
	}
	switch kind {
	case KindTunes:
		var r RawTune
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		b.Tunes = append(b.Tunes, r)
	case KindAliases:
		var r RawAlias
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		b.Aliases = append(b.Aliases, r)
	case KindPopularity:
		var r RawPopularity
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		b.Popularity = append(b.Popularity, r)
	case KindRecordings:
		var r RawRecording
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		b.Recordings = append(b.Recordings, r)
	case KindSets:
		var r RawSetRow
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		b.Sets = append(b.Sets, r)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}
