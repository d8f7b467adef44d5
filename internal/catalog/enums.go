package catalog

import "strings"

// TuneType is the dance form of a tune. A tune without a recognized type is
// never stored.
type TuneType string

const (
	TypeBarndance  TuneType = "barndance"
	TypeHornpipe   TuneType = "hornpipe"
	TypeJig        TuneType = "jig"
	TypeMarch      TuneType = "march"
	TypeMazurka    TuneType = "mazurka"
	TypePolka      TuneType = "polka"
	TypeReel       TuneType = "reel"
	TypeSlide      TuneType = "slide"
	TypeSlipJig    TuneType = "slip jig"
	TypeStrathspey TuneType = "strathspey"
	TypeThreeTwo   TuneType = "three-two"
	TypeWaltz      TuneType = "waltz"
)

// TuneTypes lists every known tune type in alphabetical order.
var TuneTypes = []TuneType{
	TypeBarndance, TypeHornpipe, TypeJig, TypeMarch, TypeMazurka, TypePolka,
	TypeReel, TypeSlide, TypeSlipJig, TypeStrathspey, TypeThreeTwo, TypeWaltz,
}

// ParseTuneType matches s case-insensitively after trimming.
func ParseTuneType(s string) (TuneType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range TuneTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Valid reports whether t is one of TuneTypes.
func (t TuneType) Valid() bool {
	for _, k := range TuneTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Meter is a time signature.
type Meter string

const (
	MeterTwelveEight Meter = "12/8"
	MeterTwoFour     Meter = "2/4"
	MeterThreeTwo    Meter = "3/2"
	MeterThreeFour   Meter = "3/4"
	MeterFourFour    Meter = "4/4"
	MeterSixEight    Meter = "6/8"
	MeterNineEight   Meter = "9/8"
)

// Meters lists every known time signature.
var Meters = []Meter{
	MeterTwelveEight, MeterTwoFour, MeterThreeTwo, MeterThreeFour,
	MeterFourFour, MeterSixEight, MeterNineEight,
}

// ParseMeter matches the trimmed string exactly.
func ParseMeter(s string) (Meter, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Meters {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Valid reports whether m is one of Meters.
func (m Meter) Valid() bool {
	for _, k := range Meters {
		if k == m {
			return true
		}
	}
	return false
}

// Mode is a key and scale, e.g. "Dmajor". Matching is case-sensitive.
type Mode string

const (
	ModeADorian     Mode = "Adorian"
	ModeAMajor      Mode = "Amajor"
	ModeAMinor      Mode = "Aminor"
	ModeAMixolydian Mode = "Amixolydian"
	ModeBDorian     Mode = "Bdorian"
	ModeBMinor      Mode = "Bminor"
	ModeBMixolydian Mode = "Bmixolydian"
	ModeCDorian     Mode = "Cdorian"
	ModeCMajor      Mode = "Cmajor"
	ModeDDorian     Mode = "Ddorian"
	ModeDMajor      Mode = "Dmajor"
	ModeDMinor      Mode = "Dminor"
	ModeDMixolydian Mode = "Dmixolydian"
	ModeEDorian     Mode = "Edorian"
	ModeEMajor      Mode = "Emajor"
	ModeEMinor      Mode = "Eminor"
	ModeEMixolydian Mode = "Emixolydian"
	ModeFDorian     Mode = "Fdorian"
	ModeFMajor      Mode = "Fmajor"
	ModeGDorian     Mode = "Gdorian"
	ModeGMajor      Mode = "Gmajor"
	ModeGMinor      Mode = "Gminor"
	ModeGMixolydian Mode = "Gmixolydian"
)

// Modes lists every known mode.
var Modes = []Mode{
	ModeADorian, ModeAMajor, ModeAMinor, ModeAMixolydian,
	ModeBDorian, ModeBMinor, ModeBMixolydian,
	ModeCDorian, ModeCMajor,
	ModeDDorian, ModeDMajor, ModeDMinor, ModeDMixolydian,
	ModeEDorian, ModeEMajor, ModeEMinor, ModeEMixolydian,
	ModeFDorian, ModeFMajor,
	ModeGDorian, ModeGMajor, ModeGMinor, ModeGMixolydian,
}

// ParseMode matches the trimmed string exactly.
func ParseMode(s string) (Mode, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Modes {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	for _, k := range Modes {
		if k == m {
			return true
		}
	}
	return false
}
