package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/tunebook/tunebook/internal/catalog"
)

// maxTitleWidth bounds the title column of tune tables.
const maxTitleWidth = 48

// TunePrinter prints tunes and recordings as tables or detail views.
type TunePrinter struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewTunePrinter creates a printer writing to out.
func NewTunePrinter(out io.Writer, noColor bool) *TunePrinter {
	return &TunePrinter{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Tunes prints one row per tune.
func (p *TunePrinter) Tunes(tunes []*catalog.Tune) error {
	if len(tunes) == 0 {
		_, err := fmt.Fprintln(p.out, p.styles.Dim.Render("No tunes found."))
		return err
	}

	rows := make([][]string, 0, len(tunes))
	for _, t := range tunes {
		rows = append(rows, []string{
			t.ID,
			truncate(t.Title, maxTitleWidth),
			string(t.Type),
			string(t.Meter),
			string(t.Mode),
			formatPopularity(t.Popularity),
		})
	}

	_, err := fmt.Fprintln(p.out, p.table([]string{"ID", "TITLE", "TYPE", "METER", "MODE", "TUNEBOOKS"}, rows))
	return err
}

// Recordings prints one row per recording.
func (p *TunePrinter) Recordings(recs []*catalog.Recording) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(p.out, p.styles.Dim.Render("No recordings."))
		return err
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{r.Artist, r.Album, r.Track})
	}
	_, err := fmt.Fprintln(p.out, p.table([]string{"ARTIST", "ALBUM", "TRACK"}, rows))
	return err
}

// Tune prints the full record of one tune followed by its recordings.
func (p *TunePrinter) Tune(t *catalog.Tune, recs []*catalog.Recording) error {
	var b strings.Builder

	b.WriteString(p.styles.Header.Render(t.Title))
	b.WriteString("\n\n")
	p.field(&b, "ID", t.ID)
	p.field(&b, "Type", string(t.Type))
	p.field(&b, "Meter", string(t.Meter))
	p.field(&b, "Mode", string(t.Mode))
	p.field(&b, "Tunebooks", formatPopularity(t.Popularity))
	if len(t.Aliases) > 0 {
		p.field(&b, "Also known as", strings.Join(t.Aliases, ", "))
	}
	if t.UpdatedAt != nil {
		p.field(&b, "Updated", humanize.Time(*t.UpdatedAt))
	}

	if t.ABC != "" {
		b.WriteString("\n")
		b.WriteString(p.styles.Panel.Render(strings.TrimRight(t.ABC, "\n")))
		b.WriteString("\n")
	}

	if _, err := fmt.Fprintln(p.out, b.String()); err != nil {
		return err
	}
	if recs == nil {
		return nil
	}

	_, _ = fmt.Fprintln(p.out, p.styles.Label.Render(fmt.Sprintf("Recordings (%d)", len(recs))))
	return p.Recordings(recs)
}

func (p *TunePrinter) field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", p.styles.Label.Render(fmt.Sprintf("%-14s", label+":")), p.styles.Value.Render(value))
}

func (p *TunePrinter) table(headers []string, rows [][]string) string {
	t := table.New().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.TableHeader
			}
			return p.styles.Cell
		})

	if p.noColor {
		t = t.Border(lipgloss.HiddenBorder()).BorderTop(false).BorderBottom(false)
	} else {
		t = t.Border(lipgloss.RoundedBorder()).BorderStyle(p.styles.TableBorder)
	}
	return t.String()
}

func formatPopularity(n *int) string {
	if n == nil {
		return "-"
	}
	return humanize.Comma(int64(*n))
}
