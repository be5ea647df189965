package output

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spiffcs/langstats/internal/duration"
	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/service"
	"golang.org/x/term"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

const defaultWidth = 100

// TableFormatter formats output as a terminal table
type TableFormatter struct {
	// Width overrides the detected terminal width.
	Width int
	// Limit shows only the most recent Limit points of a series. Zero shows
	// all of them.
	Limit int
}

// stripAnsi removes ANSI escape sequences from a string
func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// displayWidth returns the visible width of a string in terminal columns
func displayWidth(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

// truncateToWidth truncates a string to fit within maxWidth display columns
func truncateToWidth(s string, maxWidth int) (string, int) {
	plain := stripAnsi(s)
	width := runewidth.StringWidth(plain)
	if width <= maxWidth {
		return s, width
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(plain, maxWidth, ""), maxWidth
	}
	out := runewidth.Truncate(plain, maxWidth, "...")
	return out, runewidth.StringWidth(out)
}

// padRight pads a string with spaces to reach the target visible width
func padRight(s string, visibleWidth, targetWidth int) string {
	if visibleWidth >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-visibleWidth)
}

func (f *TableFormatter) width() int {
	if f.Width > 0 {
		return f.Width
	}
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func colorNet(n, width int) string {
	s := fmt.Sprintf("%*s", width, signed(n))
	switch {
	case n > 0:
		return color.GreenString(s)
	case n < 0:
		return color.RedString(s)
	default:
		return s
	}
}

// FormatSeries outputs one language's cumulative series as a table
func (f *TableFormatter) FormatSeries(language string, series []model.LanguagePoint, w io.Writer) error {
	if len(series) == 0 {
		fmt.Fprintf(w, "No data for %s.\n", language)
		return nil
	}

	const (
		colDate = 10
		colNum  = 11
	)

	first, last := series[0], series[len(series)-1]
	fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint(language),
		color.HiBlackString("%d points, %s .. %s", len(series), first.Date, last.Date))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-*s  %*s  %*s  %*s\n",
		colDate, "Date",
		colNum, "Additions",
		colNum, "Deletions",
		colNum, "Net")
	fmt.Fprintln(w, strings.Repeat("-", colDate+3*colNum+6))

	rows := series
	if f.Limit > 0 && len(rows) > f.Limit {
		omitted := len(rows) - f.Limit
		rows = rows[omitted:]
		fmt.Fprintln(w, color.HiBlackString("... %d earlier points omitted", omitted))
	}

	for _, p := range rows {
		fmt.Fprintf(w, "%-*s  %s  %s  %s\n",
			colDate, p.Date,
			color.GreenString("%*s", colNum, signed(p.Additions)),
			color.RedString("%*s", colNum, signed(-p.Deletions)),
			colorNet(p.Additions-p.Deletions, colNum))
	}
	return nil
}

// FormatSummary outputs one row per language with a bar scaled to net lines
func (f *TableFormatter) FormatSummary(summaries []LanguageSummary, w io.Writer) error {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No language statistics cached.")
		return nil
	}

	const (
		colLang   = 18
		colPoints = 6
		colDate   = 10
		colNum    = 10
		gaps      = 14
	)
	fixed := colLang + colPoints + colDate + 3*colNum + gaps
	barWidth := min(f.width()-fixed, 30)

	fmt.Fprintf(w, "%-*s  %*s  %-*s  %*s  %*s  %*s\n",
		colLang, "Language",
		colPoints, "Days",
		colDate, "Since",
		colNum, "Additions",
		colNum, "Deletions",
		colNum, "Net")
	fmt.Fprintln(w, strings.Repeat("-", fixed))

	maxNet := 0
	for _, s := range summaries {
		maxNet = max(maxNet, s.Net())
	}

	totalAdd, totalDel := 0, 0
	for _, s := range summaries {
		totalAdd += s.Additions
		totalDel += s.Deletions

		name, nameWidth := truncateToWidth(s.Language, colLang)
		line := fmt.Sprintf("%s  %*d  %-*s  %s  %s  %s",
			padRight(name, nameWidth, colLang),
			colPoints, s.Points,
			colDate, s.First,
			color.GreenString("%*s", colNum, signed(s.Additions)),
			color.RedString("%*s", colNum, signed(-s.Deletions)),
			colorNet(s.Net(), colNum))

		if bar := renderBar(s.Net(), maxNet, barWidth); bar != "" {
			line += "  " + color.CyanString(bar)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d languages  %s  %s  net %s\n",
		len(summaries),
		color.GreenString(signed(totalAdd)),
		color.RedString(signed(-totalDel)),
		signed(totalAdd-totalDel))
	return nil
}

// renderBar returns a bar of up to width cells proportional to n/maxN.
func renderBar(n, maxN, width int) string {
	if width <= 0 || maxN <= 0 || n <= 0 {
		return ""
	}
	cells := n * width / maxN
	if cells == 0 {
		cells = 1
	}
	return strings.Repeat("█", cells)
}

// FormatStatus outputs the cache and refresh state
func (f *TableFormatter) FormatStatus(st service.Status, w io.Writer) error {
	const colKey = 16
	row := func(key, value string) {
		fmt.Fprintf(w, "%-*s %s\n", colKey, key+":", value)
	}

	user := st.Username
	if user == "" {
		user = color.YellowString("(not configured)")
	}
	row("Username", user)
	row("TTL", duration.Format(st.TTL))
	row("Refresh policy", st.RefreshPolicy)
	if st.Schedule != "" {
		row("Schedule", st.Schedule)
	}

	if st.LastComputedAt.IsZero() {
		row("Last computed", color.YellowString("never"))
	} else {
		age := duration.Age(time.Since(st.LastComputedAt))
		row("Last computed", fmt.Sprintf("%s (%s ago)", st.LastComputedAt.Local().Format(time.RFC1123), age))
	}

	state := color.GreenString("fresh")
	if st.Stale {
		state = color.YellowString("stale")
	}
	if st.Refreshing {
		state += " " + color.CyanString("(refreshing)")
	}
	row("State", state)
	row("Languages", fmt.Sprintf("%d", st.Languages))
	return nil
}
