package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/mediacrawler-panel/internal/metrics"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse the CSV files the crawler wrote",
	}
	cmd.AddCommand(
		newResultsListCmd(),
		newResultsShowCmd(),
		newResultsLinkCmd(),
		newResultsOpenFolderCmd(),
	)
	return cmd
}

func newResultsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List result files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			explorer := appInstance.Explorer()
			files, err := explorer.Scan()
			if err != nil {
				return fmt.Errorf("scan %s: %w", explorer.Dir(), err)
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no result files under %s\n", explorer.Dir())
				return nil
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{
					relativeTo(explorer.Dir(), f.Path),
					f.ModTime.Format("2006-01-02 15:04:05"),
					strconv.FormatInt(f.Size, 10),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"file", "modified", "bytes"}, rows)
		},
	}
}

func newResultsShowCmd() *cobra.Command {
	var (
		rows    int
		allCols bool
	)
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a result file as a table of its relevant columns",
		Long: `Loads a result file and prints the columns that identify the post, the
author, the location, the link and the time. Pass --all-columns to print every
column. The file is looked up relative to the result directory unless it
exists as given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			loaded, err := appInstance.Explorer().Open(resultPath(appInstance.Explorer().Dir(), args[0]))
			if err != nil {
				return describeLoadError(err)
			}
			view := loaded.View
			if allCols {
				view = results.View(loaded.Table, appInstance.Explorer().MaxRows())
			}
			if rows > 0 && rows < len(view.Rows) {
				view.Rows = view.Rows[:rows]
			}
			if view.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "no relevant columns in this file; try --all-columns")
				return nil
			}
			numbered := make([][]string, len(view.Rows))
			for i, r := range view.Rows {
				numbered[i] = append([]string{strconv.Itoa(i)}, r...)
			}
			if err := renderTable(cmd.OutOrStdout(), append([]string{"#"}, view.Columns...), numbered); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows, %d of %d columns\n",
				len(view.Rows), len(loaded.Table.Rows), len(view.Columns), len(loaded.Table.Columns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "print at most this many rows (default: results.max_rows)")
	cmd.Flags().BoolVar(&allCols, "all-columns", false, "print every column instead of the relevant ones")
	return cmd
}

func newResultsLinkCmd() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "link <file> <row>",
		Short: "Print (or open) the link of one row of a result file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			row, err := strconv.Atoi(args[1])
			if err != nil || row < 0 {
				return fmt.Errorf("row must be a non-negative number, got %q", args[1])
			}
			explorer := appInstance.Explorer()
			if _, err := explorer.Open(resultPath(explorer.Dir(), args[0])); err != nil {
				return describeLoadError(err)
			}
			link, ok := explorer.Link(row)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "row %d has no link\n", row)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			if !open {
				return nil
			}
			if err := appInstance.Opener().Open(link); err != nil {
				return err
			}
			metrics.ObserveLinkOpened(link)
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the link in the default browser")
	return cmd
}

func newResultsOpenFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-folder",
		Short: "Open the result directory in the file manager, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Opener().OpenFolder(appInstance.Explorer().Dir())
		},
	}
}

// resultPath returns name as given when it exists, otherwise name joined to dir.
func resultPath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(dir, name)
}

func relativeTo(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return path
}

func describeLoadError(err error) error {
	var pErr *results.ParseError
	if errors.As(err, &pErr) {
		return fmt.Errorf("cannot display result file: %w", err)
	}
	return err
}
