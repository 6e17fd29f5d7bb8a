package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"confcap/internal/ipc"
	"confcap/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				req := ipc.LogTailRequest{Offset: -1, Limit: lines, Filter: filter}
				for {
					resp, err := client.LogTail(req)
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					if !follow || cmd.Context().Err() != nil {
						return nil
					}
					req = ipc.LogTailRequest{
						Offset:     resp.Offset,
						Follow:     true,
						WaitMillis: int((5 * time.Second) / time.Millisecond),
						Filter:     filter,
					}
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Minimum level for JSON log lines (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only lines from this component")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only lines for this capture session")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only lines containing this text")
	return cmd
}
