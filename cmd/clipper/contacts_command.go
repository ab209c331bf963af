package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipper-camera/clipper-app/internal/ipc"
)

func newContactsCommand(ctx *commandContext) *cobra.Command {
	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect the recipient directory",
	}

	contactsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Contacts()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Contacts) == 0 {
					fmt.Fprintln(stdout, "No contacts configured")
					return nil
				}
				rows := make([][]string, 0, len(resp.Contacts))
				for _, contact := range resp.Contacts {
					rows = append(rows, []string{contact.ID, contact.Name})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Name"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	})

	contactsCmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Re-read the recipient directory from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ContactsReload(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Contacts reloaded")
				return nil
			})
		},
	})

	return contactsCmd
}
