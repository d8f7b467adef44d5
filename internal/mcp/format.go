package mcp

import (
	"fmt"
	"strings"
)

// FormatTunes formats a tune list as markdown. heading names what was asked,
// e.g. a search query.
func FormatTunes(heading string, out TunesOutput) string {
	if out.Count == 0 {
		return fmt.Sprintf("No tunes found for %s", heading)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Tunes for %s\n\n", heading))
	sb.WriteString(fmt.Sprintf("Found %d tune", out.Count))
	if out.Count != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, t := range out.Tunes {
		sb.WriteString(fmt.Sprintf("%d. **%s** (id `%s`) %s\n", i+1, t.Title, t.ID, describeTune(t)))
		if len(t.Aliases) > 0 {
			sb.WriteString(fmt.Sprintf("   Also known as: %s\n", strings.Join(t.Aliases, ", ")))
		}
	}
	return sb.String()
}

// FormatTune formats one tune with its ABC body and recordings.
func FormatTune(out GetTuneOutput) string {
	t := out.Tune

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", t.Title))
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", t.ID))
	writeField(&sb, "Type", t.Type)
	writeField(&sb, "Meter", t.Meter)
	writeField(&sb, "Mode", t.Mode)
	if t.Popularity != nil {
		sb.WriteString(fmt.Sprintf("- **Tunebooks:** %d\n", *t.Popularity))
	}
	if len(t.Aliases) > 0 {
		writeField(&sb, "Also known as", strings.Join(t.Aliases, ", "))
	}

	if t.ABC != "" {
		sb.WriteString("\n```abc\n")
		sb.WriteString(strings.TrimRight(t.ABC, "\n"))
		sb.WriteString("\n```\n")
	}

	if len(out.Recordings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatRecordings(RecordingsOutput{TuneID: t.ID, Recordings: out.Recordings}))
	}
	return sb.String()
}

// FormatRecordings formats recordings as a markdown table.
func FormatRecordings(out RecordingsOutput) string {
	if len(out.Recordings) == 0 {
		return fmt.Sprintf("No recordings of tune `%s`", out.TuneID)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### Recordings (%d)\n\n", len(out.Recordings)))
	sb.WriteString("| Artist | Album | Track |\n")
	sb.WriteString("|---|---|---|\n")
	for _, r := range out.Recordings {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeCell(r.Artist), escapeCell(r.Album), escapeCell(r.Track)))
	}
	return sb.String()
}

// FormatStats formats catalog statistics as markdown.
func FormatStats(out StatsOutput) string {
	var sb strings.Builder
	sb.WriteString("## Catalog\n\n")
	sb.WriteString("| Kind | Records |\n")
	sb.WriteString("|---|---|\n")
	sb.WriteString(fmt.Sprintf("| tunes | %d |\n", out.Tunes))
	sb.WriteString(fmt.Sprintf("| aliases | %d |\n", out.Aliases))
	sb.WriteString(fmt.Sprintf("| popularity | %d |\n", out.Popularity))
	sb.WriteString(fmt.Sprintf("| recordings | %d |\n", out.Recordings))
	sb.WriteString(fmt.Sprintf("| sets | %d |\n", out.Sets))

	if out.IndexBuilt {
		sb.WriteString(fmt.Sprintf("\nFuzzy index ready with %d tunes.\n", out.IndexSize))
	} else {
		sb.WriteString("\nFuzzy index not built yet.\n")
	}
	if out.Searches > 0 {
		sb.WriteString(fmt.Sprintf("\nAnswered %d searches, %d without results.\n", out.Searches, out.ZeroResults))
		if len(out.TopTerms) > 0 {
			sb.WriteString("Most searched: " + strings.Join(out.TopTerms, ", ") + "\n")
		}
	}
	return sb.String()
}

func describeTune(t TuneOutput) string {
	var parts []string
	for _, p := range []string{t.Type, t.Meter, t.Mode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "- " + strings.Join(parts, ", ")
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("- **%s:** %s\n", label, value))
}

// escapeCell keeps a value from breaking a markdown table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// clampLimit returns a value within [min, max], or defaultVal if limit <= 0.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
