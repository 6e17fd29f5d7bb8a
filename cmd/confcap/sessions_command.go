package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"confcap/internal/ipc"
	"confcap/internal/journal"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "sessions [session-id]",
		Short: "List journaled capture sessions, or the sources of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.SessionsRequest{Limit: limit}
			if len(args) == 1 {
				req.SessionID = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sessions(req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if req.SessionID != "" {
					if asJSON {
						return writeJSON(cmd, resp.Sources)
					}
					if len(resp.Sources) == 0 {
						fmt.Fprintf(out, "No sources recorded for session %s\n", req.SessionID)
						return nil
					}
					fmt.Fprint(out, renderSourceRecords(resp.Sources))
					fmt.Fprintln(out)
					return nil
				}
				if asJSON {
					return writeJSON(cmd, resp.Sessions)
				}
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				fmt.Fprint(out, renderSessions(resp.Sessions))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderSessions(sessions []journal.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		duration := "running"
		if s.StoppedAt != nil {
			duration = s.Duration().Round(time.Second).String()
		}
		format := s.MimeType
		if s.RawPCM {
			format = "raw PCM"
		}
		rows = append(rows, []string{
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			format,
		})
	}
	return renderTable(
		[]string{"Session", "Started", "Duration", "Format"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderSourceRecords(sources []journal.SourceRecord) string {
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		removed := "-"
		if src.RemovedAt != nil {
			removed = src.RemovedAt.Local().Format("15:04:05")
		}
		rows = append(rows, []string{
			src.SourceKey,
			src.ParticipantID,
			src.DisplayName,
			titleLabel(src.Locality),
			src.AddedAt.Local().Format("15:04:05"),
			removed,
		})
	}
	return renderTable(
		[]string{"Source", "Participant", "Name", "Locality", "Added", "Removed"},
		rows,
		nil,
	)
}
