package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder defines the display order for error categories (most to least actionable).
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryCanceled,
	result.CategoryUnknown,
}

type categoryTally struct {
	saved, failed, cancelled int
}

// RenderSummary produces a Lip Gloss styled summary of a mirror run.
func RenderSummary(res *result.Result, report *result.Report) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var assets []result.AssetOutcome
	if report != nil {
		assets = report.Assets
	}

	tallies := make(map[asset.Category]*categoryTally, len(asset.Categories))
	for _, c := range asset.Categories {
		tallies[c] = &categoryTally{}
	}
	var failures []result.AssetOutcome
	for _, a := range assets {
		t, ok := tallies[a.Category]
		if !ok {
			continue
		}
		switch a.Status {
		case result.StatusSaved:
			t.saved++
		case result.StatusFailed:
			t.failed++
			failures = append(failures, a)
		case result.StatusCancelled:
			t.cancelled++
		}
	}

	var builder strings.Builder

	builder.WriteString(successStyle.Render(fmt.Sprintf("Mirrored %q", res.ProductName)))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(res.Folder))
	builder.WriteString("\n")

	rows := make([][]string, 0, len(asset.Categories))
	for _, c := range asset.Categories {
		t := tallies[c]
		rows = append(rows, []string{
			string(c),
			strconv.Itoa(res.Counts[c]),
			strconv.Itoa(t.saved),
			strconv.Itoa(t.failed),
			strconv.Itoa(t.cancelled),
		})
	}
	countTable := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Category", "Found", "Saved", "Failed", "Cancelled").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row >= 0 && row < len(rows) && rows[row][3] != "0" {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...)
	builder.WriteString(countTable.Render())
	builder.WriteString("\n")

	// Group failures by error category
	grouped := make(map[result.ErrorCategory][]result.AssetOutcome)
	for _, f := range failures {
		cat := f.ErrorCategory
		if cat == "" {
			cat = result.CategoryUnknown
		}
		grouped[cat] = append(grouped[cat], f)
	}

	for _, cat := range categoryOrder {
		items := grouped[cat]
		if len(items) == 0 {
			continue
		}

		builder.WriteString("\n")
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(items))))
		builder.WriteString("\n")

		failRows := make([][]string, 0, len(items))
		for _, f := range items {
			status := f.Error
			if f.StatusCode != 0 {
				status = strconv.Itoa(f.StatusCode)
			}
			failRows = append(failRows, []string{f.URL, status, string(f.Category)})
		}

		catTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status", "Category").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 { // Status column
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(failRows...)

		builder.WriteString(catTable.Render())
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Discovered %d assets, saved %d (%s)",
		res.Total(),
		countSaved(tallies),
		res.Duration.Round(1_000_000), // round to ms
	)))
	builder.WriteString("\n")

	return builder.String()
}

func countSaved(tallies map[asset.Category]*categoryTally) int {
	n := 0
	for _, t := range tallies {
		n += t.saved
	}
	return n
}
