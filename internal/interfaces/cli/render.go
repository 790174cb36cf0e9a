package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"gdm.sh/cli/internal/core/domain"
)

// renderSearch prints catalog search hits as a table, followed by the add
// hint for the first hit.
func renderSearch(out io.Writer, hits []domain.AssetSummary) {
	if len(hits) == 0 {
		fmt.Fprintln(out, "No assets found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Author", "Version", "Godot", "License"})
	for _, hit := range hits {
		t.AppendRow(table.Row{hit.AssetID, hit.Title, hit.Author, hit.Version, hit.GodotVersion, hit.License})
	}
	t.Render()

	if len(hits) == 1 {
		fmt.Fprintf(out, "\nInstall with: gdm add --asset-id %s\n", hits[0].AssetID)
	}
}

// renderOutdated prints the version report for every tracked catalog plugin.
func renderOutdated(out io.Writer, reports []domain.OutdatedReport) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No catalog plugins tracked.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Plugin", "Current", "Latest", ""})
	outdated := 0
	for _, r := range reports {
		mark := ""
		if r.UpdateAvailable {
			mark = "update available"
			outdated++
		}
		t.AppendRow(table.Row{r.Name, r.Current, r.Latest, mark})
	}
	t.Render()

	if outdated == 0 {
		fmt.Fprintln(out, "\nEverything is up to date.")
	} else {
		fmt.Fprintf(out, "\n%d plugin(s) can be updated; run: gdm update\n", outdated)
	}
}

// renderBatch summarizes a batch operation and returns its combined error
// when any plugin failed.
func renderBatch(out io.Writer, verb string, result domain.BatchResult) error {
	for _, name := range result.Succeeded {
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓"), fmt.Sprintf("%s %s", verb, name))
	}
	for _, failure := range result.Failed {
		fmt.Fprintf(out, "%s %v\n", failStyle.Render("✗"), failure.Err)
	}
	if len(result.Succeeded) == 0 && len(result.Failed) == 0 {
		fmt.Fprintln(out, "Nothing to do.")
	}
	return result.Err()
}
