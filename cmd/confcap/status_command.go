package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"confcap/internal/capture"
	"confcap/internal/daemonctl"
	"confcap/internal/deps"
	"confcap/internal/hub"
	"confcap/internal/tracks"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture, and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			system := make([]string, 0, 8)
			for _, line := range daemonctl.BuildSystemLines(snap) {
				system = append(system, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			printSection(stdout, "System Status", colorize, system)
			fmt.Fprintln(stdout)

			if snap.Reachable {
				lines := captureLines(snap.Status.Capture, snap.Status.Transcription, colorize)
				if last := snap.Status.LastError; last != nil {
					lines = append(lines, renderStatusLine("Last Error", statusError,
						fmt.Sprintf("%s (%s)", last.Error, last.Timestamp.Local().Format("15:04:05")), colorize))
				}
				printSection(stdout, "Capture", colorize, lines)
				if len(snap.Status.Capture.Sources) > 0 {
					fmt.Fprint(stdout, renderSourcesTable(snap.Status.Capture.Sources))
					fmt.Fprintln(stdout)
				}
				fmt.Fprintln(stdout)

				printSection(stdout, "Tracks", colorize, nil)
				if len(snap.Status.Tracks) == 0 {
					fmt.Fprintln(stdout, "No tracks registered")
				} else {
					fmt.Fprint(stdout, renderTracksTable(snap.Status.Tracks))
					fmt.Fprintln(stdout)
				}
				fmt.Fprintln(stdout)

				printSection(stdout, "Events", colorize, eventLines(snap.Status.Events, colorize))
				fmt.Fprintln(stdout)
			}

			printSection(stdout, "Dependencies", colorize, dependencyLines(snap.Status.Dependencies, snap.Summary, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func captureLines(st capture.Status, preference bool, colorize bool) []string {
	if !st.Capturing {
		return []string{
			renderStatusLine("Session", statusInfo, "Idle", colorize),
			renderStatusLine("Transcription", statusInfo, onOff(preference)+" (next session)", colorize),
		}
	}
	format := st.MimeType
	if st.Config.RawPCM {
		format = fmt.Sprintf("raw PCM (%d-sample frames)", st.Config.PCMBufferSize)
	}
	features := make([]string, 0, 2)
	if st.Config.EnableLevels {
		features = append(features, fmt.Sprintf("levels every %s", st.Config.LevelInterval))
	}
	if st.Config.EnableVAD {
		features = append(features, fmt.Sprintf("VAD at %.2f", st.Config.VADThreshold))
	}
	if len(features) == 0 {
		features = append(features, "none")
	}
	return []string{
		renderStatusLine("Session", statusOK, fmt.Sprintf("%s (running %s)", st.SessionID, time.Since(st.StartedAt).Round(time.Second)), colorize),
		renderStatusLine("Format", statusInfo, format, colorize),
		renderStatusLine("Chunk Interval", statusInfo, st.Config.ChunkInterval.String(), colorize),
		renderStatusLine("Analysis", statusInfo, strings.Join(features, ", "), colorize),
		renderStatusLine("Transcription", statusInfo, onOff(st.Transcription), colorize),
	}
}

func renderSourcesTable(sources []capture.SourceStatus) string {
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, []string{
			src.Key,
			src.ParticipantID,
			src.DisplayName,
			titleLabel(string(src.Locality)),
			strconv.FormatFloat(src.Level, 'f', 2, 64),
			yesNo(src.Speaking),
		})
	}
	return renderTable(
		[]string{"Source", "Participant", "Name", "Locality", "Level", "Speaking"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderTracksTable(statuses []tracks.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		state := "live"
		if !st.Live {
			state = "idle"
		}
		if st.Error != "" {
			state = "error: " + st.Error
		}
		rows = append(rows, []string{
			st.ID,
			titleLabel(string(st.Kind)),
			titleLabel(string(st.Locality)),
			st.ParticipantID,
			st.Source,
			state,
		})
	}
	return renderTable(
		[]string{"Track", "Kind", "Locality", "Participant", "Source", "State"},
		rows,
		nil,
	)
}

func eventLines(stats hub.Stats, colorize bool) []string {
	lines := []string{
		renderStatusLine("Buffered", statusInfo, fmt.Sprintf("%d/%d (last seq %d)", stats.Buffered, stats.Capacity, stats.LastSeq), colorize),
	}
	kinds := make([]string, 0, len(stats.Counts))
	for kind := range stats.Counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		lines = append(lines, renderStatusLine(titleLabel(kind), statusInfo, strconv.FormatUint(stats.Counts[capture.EventKind(kind)], 10), colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+2)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}
