package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/tognete/codi/internal/domain"
	"github.com/tognete/codi/internal/terminal"
	"github.com/tognete/codi/internal/workspace"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [path]",
		Short: "Show file and directory counts for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if info, err := os.Stat(root); err != nil || !info.IsDir() {
				terminal.Logf(terminal.StyleError, "%s is not a directory", root)
				return exitCode(domain.ExitError)
			}
			stats, err := workspace.ComputeStats(root)
			if err != nil {
				terminal.Logf(terminal.StyleError, "%v", err)
				return exitCode(domain.ExitError)
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return renderStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stats as JSON")
	return cmd
}

// renderStats prints totals followed by a markdown table of file types.
func renderStats(w io.Writer, stats *workspace.Stats) error {
	fmt.Fprintf(w, "Total files: %d\nTotal directories: %d\n\n", stats.Files, stats.Directories)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignLeft, tw.AlignRight}},
			},
		}),
		tablewriter.WithHeader([]string{"Extension", "Files"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
	)
	for _, e := range stats.ByExtension {
		if err := table.Append([]string{e.Ext, strconv.Itoa(e.Count)}); err != nil {
			return err
		}
	}
	return table.Render()
}
