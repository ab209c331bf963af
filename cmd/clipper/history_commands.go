package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipper-camera/clipper-app/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the upload history log",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upload history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryList(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "History is empty")
					return nil
				}

				colorize := shouldColorize(stdout)
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					detail := entry.ErrorMessage
					if entry.Status == "uploading" {
						detail = fmt.Sprintf("%d%%", entry.Progress)
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", entry.ID),
						entry.MediaKind,
						statusLabel(entry.Status, colorize),
						truncate(detail, 40),
						formatTimestamp(entry.UpdatedAt),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Kind", "Status", "Detail", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries\n", resp.Removed)
				return nil
			})
		},
	}
}
