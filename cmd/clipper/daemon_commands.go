package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/clipper-camera/clipper-app/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()

				fmt.Fprintf(stdout, "Daemon running:   %s (pid %d)\n", yesNo(resp.Running), resp.PID)
				fmt.Fprintf(stdout, "Endpoint healthy: %s\n", yesNo(resp.EndpointHealthy))
				if resp.EndpointDetail != "" {
					fmt.Fprintf(stdout, "Endpoint detail:  %s\n", resp.EndpointDetail)
				}
				if resp.LastPass != "" {
					fmt.Fprintf(stdout, "Last pass:        %s\n", formatTimestamp(resp.LastPass))
				}
				fmt.Fprintf(stdout, "Queue database:   %s\n", resp.QueueDBPath)
				fmt.Fprintf(stdout, "History database: %s\n", resp.HistoryDBPath)
				fmt.Fprintln(stdout)

				rows := [][]string{
					{"pending", fmt.Sprintf("%d", resp.QueuePending)},
					{"uploading", fmt.Sprintf("%d", resp.QueueUploading)},
					{"total", fmt.Sprintf("%d", resp.QueueTotal)},
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Queue", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if len(resp.HistoryStats) > 0 {
					statuses := make([]string, 0, len(resp.HistoryStats))
					for status := range resp.HistoryStats {
						statuses = append(statuses, status)
					}
					sort.Strings(statuses)
					historyRows := make([][]string, 0, len(statuses))
					for _, status := range statuses {
						historyRows = append(historyRows, []string{status, fmt.Sprintf("%d", resp.HistoryStats[status])})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"History", "Count"},
						historyRows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the clipper daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon was not running")
				}
				return nil
			})
		},
	}
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Request an immediate queue pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger()
				if err != nil {
					return err
				}
				if resp.Triggered {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue pass requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not processing")
				}
				return nil
			})
		},
	}
}
