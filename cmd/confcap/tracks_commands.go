package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"confcap/internal/ipc"
	"confcap/internal/tracks"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	tracksCmd := &cobra.Command{
		Use:   "tracks",
		Short: "Inspect or replace the tracks offered to the daemon",
	}
	tracksCmd.AddCommand(newTracksListCommand(ctx))
	tracksCmd.AddCommand(newTracksPushCommand(ctx))
	tracksCmd.AddCommand(newTracksClearCommand(ctx))
	return tracksCmd
}

func newTracksListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tracks and their stream state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TracksList()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Tracks)
				}
				out := cmd.OutOrStdout()
				if len(resp.Tracks) == 0 {
					fmt.Fprintln(out, "No tracks registered")
					return nil
				}
				fmt.Fprint(out, renderTracksTable(resp.Tracks))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTracksPushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push <manifest.yaml>",
		Short: "Replace host-provided tracks with the contents of a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := tracks.LoadManifest(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TracksPush(descs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d track(s); %d registered\n", len(descs), resp.Total)
				return nil
			})
		},
	}
}

func newTracksClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every host-provided track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TracksPush(nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Host tracks cleared; %d registered\n", resp.Total)
				return nil
			})
		},
	}
}
