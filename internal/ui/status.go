package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tunebook/tunebook/internal/catalog"
	"github.com/tunebook/tunebook/internal/telemetry"
)

// StatusInfo describes the engine a command talked to and its catalog.
type StatusInfo struct {
	// Engine
	Mode        string `json:"mode"` // "daemon" or "in-process"
	SocketPath  string `json:"socket_path,omitempty"`
	Version     string `json:"version,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	Initialized bool   `json:"initialized"`

	// Catalog
	Counts     map[catalog.Kind]int `json:"counts"`
	IndexBuilt bool                 `json:"index_built"`
	IndexSize  int                  `json:"index_size"`

	// Searches answered by this engine
	Searches *telemetry.Snapshot `json:"searches,omitempty"`

	// Storage
	DBPath     string    `json:"db_path,omitempty"`
	DBSize     int64     `json:"db_size,omitempty"`
	LastChange time.Time `json:"last_change,omitempty"`
}

// StatusRenderer displays engine and catalog status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to the terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Tunebook Status"))

	_, _ = fmt.Fprintln(r.out, "  Engine:")
	_, _ = fmt.Fprintf(r.out, "    Mode:        %s\n", info.Mode)
	if info.SocketPath != "" {
		_, _ = fmt.Fprintf(r.out, "    Socket:      %s\n", info.SocketPath)
	}
	if info.Version != "" {
		_, _ = fmt.Fprintf(r.out, "    Version:     %s\n", info.Version)
	}
	if info.Uptime != "" {
		_, _ = fmt.Fprintf(r.out, "    Uptime:      %s\n", info.Uptime)
	}
	_, _ = fmt.Fprintf(r.out, "    Initialized: %s\n", r.renderBool(info.Initialized))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Catalog:")
	for _, kind := range catalog.AllKinds {
		_, _ = fmt.Fprintf(r.out, "    %-12s %s\n", kind+":", humanize.Comma(int64(info.Counts[kind])))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Fuzzy index:")
	_, _ = fmt.Fprintf(r.out, "    Built:  %s\n", r.renderBool(info.IndexBuilt))
	_, _ = fmt.Fprintf(r.out, "    Tunes:  %s\n", humanize.Comma(int64(info.IndexSize)))

	if s := info.Searches; s != nil && s.Searches > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Searches:")
		_, _ = fmt.Fprintf(r.out, "    Total:        %s (since %s)\n", humanize.Comma(s.Searches), humanize.Time(s.Since))
		_, _ = fmt.Fprintf(r.out, "    No results:   %s (%.1f%%)\n", humanize.Comma(s.ZeroResults), s.ZeroResultRate()*100)
		_, _ = fmt.Fprintf(r.out, "    Repeated:     %s\n", humanize.Comma(s.Repeats))
		if len(s.TopTerms) > 0 {
			terms := make([]string, 0, len(s.TopTerms))
			for _, tc := range s.TopTerms {
				terms = append(terms, fmt.Sprintf("%s (%d)", tc.Term, tc.Count))
			}
			_, _ = fmt.Fprintf(r.out, "    Top terms:    %s\n", strings.Join(terms, ", "))
		}
		if len(s.RecentMisses) > 0 {
			_, _ = fmt.Fprintf(r.out, "    Last misses:  %s\n", r.styles.Dim.Render(strings.Join(s.RecentMisses, " | ")))
		}
	}

	if info.DBPath != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Storage:")
		_, _ = fmt.Fprintf(r.out, "    Path:     %s\n", info.DBPath)
		_, _ = fmt.Fprintf(r.out, "    Size:     %s\n", humanize.Bytes(uint64(max(info.DBSize, 0))))
		if !info.LastChange.IsZero() {
			_, _ = fmt.Fprintf(r.out, "    Modified: %s\n", humanize.Time(info.LastChange))
		}
	} else if info.Mode == "in-process" {
		_, _ = fmt.Fprintf(r.out, "\n  %s\n", r.styles.Dim.Render("Storage: in memory"))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	return WriteJSON(r.out, info)
}

func (r *StatusRenderer) renderBool(ok bool) string {
	if ok {
		return r.styles.Success.Render("yes")
	}
	return r.styles.Warning.Render("no")
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
