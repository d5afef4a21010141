package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"countryfilter/internal/badge"
	"countryfilter/internal/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(badge.Color))
	labelStyle = lipgloss.NewStyle().Width(24).Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	subtle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func row(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

// renderStats prints the counters and the per-country tally, busiest
// country first
func renderStats(w io.Writer, st models.Stats, detected models.DetectedCountries) {
	lines := []string{
		titleStyle.Render("Filter stats"),
		row("Tweets scanned", st.TotalScanned),
		row("Tweets hidden", st.Hidden),
		row("Accounts with location", st.WithLocation),
	}

	if len(detected) > 0 {
		countries := make([]string, 0, len(detected))
		for c := range detected {
			countries = append(countries, c)
		}
		sort.Slice(countries, func(i, j int) bool {
			if detected[countries[i]] != detected[countries[j]] {
				return detected[countries[i]] > detected[countries[j]]
			}
			return countries[i] < countries[j]
		})
		lines = append(lines, "", titleStyle.Render("Detected countries"))
		for _, c := range countries {
			lines = append(lines, row(c, detected[c]))
		}
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func renderSettings(w io.Writer, s models.Settings) {
	var blocked []string
	for c, on := range s.BlockedCountries {
		if on {
			blocked = append(blocked, c)
		}
	}
	sort.Strings(blocked)

	list := func(v []string) string {
		if len(v) == 0 {
			return subtle.Render("none")
		}
		return strings.Join(v, ", ")
	}

	lines := []string{
		titleStyle.Render("Settings") + subtle.Render(fmt.Sprintf(" v%d", s.Version)),
		row("Enabled", s.Enabled),
		row("Filter mode", s.FilterMode),
		row("Blocked countries", list(blocked)),
		row("Blocked users", list(s.BlockedUsers)),
		row("Blocked keywords", list(s.BlockedKeywords)),
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
