package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"confcap/internal/capture"
	"confcap/internal/hub"
	"confcap/internal/ipc"
)

const eventFollowWait = 5 * time.Second

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		since  uint64
		tail   int
		limit  int
		follow bool
		kinds  []string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print buffered capture events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			return ctx.withClient(func(client *ipc.Client) error {
				req := ipc.EventsRequest{Since: since, Limit: limit, Kinds: kinds}
				if tail > 0 && since == 0 {
					req.Tail = tail
				}
				for {
					resp, err := client.Events(req)
					if err != nil {
						return err
					}
					if resp.Lagged {
						fmt.Fprintln(errOut, "warning: older events were dropped before they could be read")
					}
					for _, data := range resp.Records {
						if err := printRecord(out, data, raw); err != nil {
							return err
						}
					}
					if !follow {
						return nil
					}
					if err := cmd.Context().Err(); err != nil {
						return nil
					}
					req = ipc.EventsRequest{
						Since:      resp.Cursor,
						Limit:      limit,
						Kinds:      kinds,
						WaitMillis: int(eventFollowWait / time.Millisecond),
					}
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only print events after this sequence number")
	cmd.Flags().IntVarP(&tail, "tail", "n", 20, "Number of most recent events to print (ignored with --since)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events per fetch (0 for no limit)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only print these event kinds (repeatable)")
	cmd.Flags().BoolVar(&raw, "json", false, "Print the encoded JSON records")
	return cmd
}

func printRecord(w io.Writer, data []byte, raw bool) error {
	if raw {
		_, err := fmt.Fprintln(w, strings.TrimSpace(string(data)))
		return err
	}
	rec, err := hub.JSON.DecodeRecord(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatRecord(rec))
	return nil
}

func formatRecord(rec hub.Record) string {
	ev := rec.Event
	return fmt.Sprintf("%6d  %s  %-20s %s",
		rec.Sequence,
		ev.At().Local().Format("15:04:05.000"),
		titleLabel(string(ev.Kind())),
		describeEvent(ev))
}

func describeEvent(ev capture.Event) string {
	switch e := ev.(type) {
	case capture.AudioChunk:
		return fmt.Sprintf("%d bytes %s", len(e.Data), e.MimeType)
	case capture.PCMFrame:
		name := e.ParticipantName
		if name == "" {
			name = e.ParticipantID
		}
		return fmt.Sprintf("%s: %d samples @ %d Hz", name, len(e.Samples), e.SampleRate)
	case capture.AudioLevels:
		ids := make([]string, 0, len(e.Levels))
		for id := range e.Levels {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s=%.2f", id, e.Levels[id]))
		}
		return strings.Join(parts, " ")
	case capture.VoiceActivity:
		state := "stopped speaking"
		if e.Speaking {
			state = "speaking"
		}
		return e.ParticipantID + " " + state
	case capture.CaptureStatus:
		if e.Error != "" {
			return fmt.Sprintf("%s: %s", e.Status, e.Error)
		}
		return string(e.Status)
	case capture.TranscriptionStatus:
		return "transcription " + onOff(e.Enabled)
	default:
		return ""
	}
}
