package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/ipc"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var recipients []string
	var overlaysJSON string

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Queue a photo or video for upload",
		Long: `Queue a media file for upload to the configured endpoint.

The file is queued immediately and delivered in the background, even when
the device is offline. Media kind is inferred from the file extension
unless --kind is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			var overlays []ipc.Overlay
			if trimmed := strings.TrimSpace(overlaysJSON); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &overlays); err != nil {
					return fmt.Errorf("parse --overlays: %w", err)
				}
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Send(ipc.SendRequest{
					Path:       path,
					MediaKind:  strings.TrimSpace(kind),
					Recipients: recipients,
					Overlays:   overlays,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Queued %s upload %d", resp.Item.MediaKind, resp.Item.ID)
				if len(resp.Item.Recipients) > 0 {
					fmt.Fprintf(stdout, " for %s", strings.Join(resp.Item.Recipients, ", "))
				}
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Media kind (image or video); inferred from the extension when omitted")
	cmd.Flags().StringArrayVarP(&recipients, "to", "t", nil, "Recipient identifier (repeatable)")
	cmd.Flags().StringVar(&overlaysJSON, "overlays", "", "Text overlays as a JSON array")
	return cmd
}
