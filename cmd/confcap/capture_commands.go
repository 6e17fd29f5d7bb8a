package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"confcap/internal/capture"
	"confcap/internal/ipc"
)

func newCaptureCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newTranscriptionCommand(ctx),
	}
}

type startFlags struct {
	mimeType      string
	chunkMs       int
	levelMs       int
	vadThreshold  float64
	pcmBufferSize int
	rawPCM        bool
	noLevels      bool
	noVAD         bool
	noLocal       bool
	noRemote      bool
	asJSON        bool
}

func (f *startFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.mimeType, "mime", "", "Preferred encoded MIME type (falls back when unsupported)")
	fs.IntVar(&f.chunkMs, "chunk-ms", 0, "Encoded chunk interval in milliseconds")
	fs.IntVar(&f.levelMs, "level-ms", 0, "Audio level sampling interval in milliseconds")
	fs.Float64Var(&f.vadThreshold, "vad-threshold", 0, "Voice activity threshold between 0 and 1")
	fs.IntVar(&f.pcmBufferSize, "pcm-buffer", 0, "PCM frame size in samples (power of two, 256-16384)")
	fs.BoolVar(&f.rawPCM, "raw-pcm", false, "Emit raw PCM frames per participant instead of encoded chunks")
	fs.BoolVar(&f.noLevels, "no-levels", false, "Disable audio level events")
	fs.BoolVar(&f.noVAD, "no-vad", false, "Disable voice activity events")
	fs.BoolVar(&f.noLocal, "no-local", false, "Exclude local tracks")
	fs.BoolVar(&f.noRemote, "no-remote", false, "Exclude remote tracks")
	fs.BoolVar(&f.asJSON, "json", false, "Output as JSON")
}

// options converts the flags the user actually set into overrides. Unset
// flags leave the daemon's configured defaults in place.
func (f *startFlags) options(cmd *cobra.Command) capture.Options {
	flags := cmd.Flags()
	var opts capture.Options
	if flags.Changed("mime") {
		mime := strings.TrimSpace(f.mimeType)
		opts.EncodedMimeType = &mime
	}
	if flags.Changed("chunk-ms") {
		opts.ChunkIntervalMs = &f.chunkMs
	}
	if flags.Changed("level-ms") {
		opts.LevelIntervalMs = &f.levelMs
	}
	if flags.Changed("vad-threshold") {
		opts.VADThreshold = &f.vadThreshold
	}
	if flags.Changed("pcm-buffer") {
		opts.PCMBufferSize = &f.pcmBufferSize
	}
	if flags.Changed("raw-pcm") {
		opts.RawPCM = &f.rawPCM
	}
	if flags.Changed("no-levels") {
		enabled := !f.noLevels
		opts.EnableLevels = &enabled
	}
	if flags.Changed("no-vad") {
		enabled := !f.noVAD
		opts.EnableVAD = &enabled
	}
	if flags.Changed("no-local") {
		include := !f.noLocal
		opts.IncludeLocal = &include
	}
	if flags.Changed("no-remote") {
		include := !f.noRemote
		opts.IncludeRemote = &include
	}
	return opts
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var flags startFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a capture session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.options(cmd)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(opts)
				if err != nil {
					return err
				}
				if flags.asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Started {
					fmt.Fprintf(out, "Capture already running (session %s)\n", resp.SessionID)
					return nil
				}
				format := resp.MimeType
				if format == "" {
					format = "raw PCM"
				}
				fmt.Fprintf(out, "Capture started (session %s, %s)\n", resp.SessionID, format)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active capture session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Stopped {
					fmt.Fprintln(out, "No capture session running")
					return nil
				}
				fmt.Fprintf(out, "Capture stopped (session %s)\n", resp.SessionID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTranscriptionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "transcription [on|off|toggle]",
		Short:     "Show or change the transcription flag",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{ipc.TranscriptionOn, ipc.TranscriptionOff, ipc.TranscriptionToggle},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := ""
			if len(args) == 1 {
				mode = strings.ToLower(strings.TrimSpace(args[0]))
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transcription(mode)
				if err != nil {
					return err
				}
				state := "off"
				if resp.Enabled {
					state = "on"
				}
				out := cmd.OutOrStdout()
				if resp.Capturing {
					fmt.Fprintf(out, "Transcription %s\n", state)
				} else {
					fmt.Fprintf(out, "Transcription %s (applies to the next session)\n", state)
				}
				return nil
			})
		},
	}
}
