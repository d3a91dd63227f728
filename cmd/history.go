package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

var runStatuses = []store.RunStatus{store.RunRunning, store.RunSuccess, store.RunFailure, store.RunStopped, store.RunError}

func newHistoryCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past crawler runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var filter *store.RunStatus
			if status != "" {
				s, err := parseRunStatus(status)
				if err != nil {
					return err
				}
				filter = &s
			}
			runs, err := appInstance.History().ListRuns(cmd.Context(), filter, limit, offset)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, historyRow(r))
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"started", "mode", "platform", "keywords", "status", "exit", "lines", "duration"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show runs with this status: running, success, failure, stopped or error")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	return cmd
}

func parseRunStatus(raw string) (store.RunStatus, error) {
	for _, s := range runStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown run status %q", raw)
}

func historyRow(r store.RunRecord) []string {
	exit, dur := "-", "-"
	if r.ExitCode != nil {
		exit = strconv.Itoa(*r.ExitCode)
	}
	if r.FinishedAt != nil {
		dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
	}
	status := string(r.Status)
	if r.ErrorMessage != nil && *r.ErrorMessage != "" {
		status += ": " + *r.ErrorMessage
	}
	return []string{
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		r.Mode,
		r.Platform,
		strings.Join(r.Keywords, ","),
		status,
		exit,
		strconv.FormatInt(r.Lines, 10),
		dur,
	}
}
