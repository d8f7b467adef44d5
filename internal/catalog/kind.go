package catalog

import "strings"

// Kind names one of the five entity tables.
type Kind string

const (
	KindTunes      Kind = "tunes"
	KindRecordings Kind = "recordings"
	KindAliases    Kind = "aliases"
	KindPopularity Kind = "popularity"
	KindSets       Kind = "sets"
)

// AllKinds is the fixed kind order used for counts, keyword inference and
// table creation.
var AllKinds = []Kind{KindTunes, KindAliases, KindPopularity, KindRecordings, KindSets}

// DataFiles maps each kind to its conventional file name in a data
// directory dump.
var DataFiles = map[Kind]string{
	KindTunes:      "tunes.json",
	KindAliases:    "aliases.json",
	KindPopularity: "tune_popularity.json",
	KindRecordings: "recordings.json",
	KindSets:       "sets.json",
}

// InferKind returns the first kind whose keyword occurs in source.
func InferKind(source string) (Kind, bool) {
	for _, k := range AllKinds {
		if strings.Contains(source, string(k)) {
			return k, true
		}
	}
	return "", false
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}
