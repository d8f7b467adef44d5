package ingest

import (
	"os"
	"path/filepath"

	"github.com/tunebook/tunebook/internal/catalog"
)

// Source is a location to fetch. Kind is inferred from the location when
// empty.
type Source struct {
	Location string       `json:"location"`
	Kind     catalog.Kind `json:"kind,omitempty"`
}

// expandSources turns raw locations into sources. A local directory
// becomes its standard data files in kind order; missing files are
// reported and skipped.
func expandSources(locations []string, w *warnings) []Source {
	var out []Source
	for _, loc := range locations {
		if isRemote(loc) {
			out = append(out, Source{Location: loc})
			continue
		}
		path := localPath(loc)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			out = append(out, Source{Location: loc})
			continue
		}
		for _, kind := range catalog.AllKinds {
			file := filepath.Join(path, catalog.DataFiles[kind])
			if _, err := os.Stat(file); err != nil {
				w.add("Skipping %s: not found", file)
				continue
			}
			out = append(out, Source{Location: file, Kind: kind})
		}
	}
	return out
}
