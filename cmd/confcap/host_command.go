package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"confcap/internal/capture"
	"confcap/internal/hostlink"
	"confcap/internal/hub"
)

func newHostCommand(ctx *commandContext) *cobra.Command {
	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Debug the host event link",
	}
	hostCmd.AddCommand(newHostTapCommand(ctx))
	hostCmd.AddCommand(newHostPingCommand(ctx))
	return hostCmd
}

type hostDialFlags struct {
	codec     string
	websocket string
}

func (f *hostDialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.codec, "codec", "", "Payload codec (json or msgpack); defaults to the configured codec")
	cmd.Flags().StringVar(&f.websocket, "websocket", "", "Connect to a WebSocket link (ws://host:port) instead of the Unix socket")
}

func (f *hostDialFlags) dial(cmdCtx context.Context, ctx *commandContext) (*hostlink.Client, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(f.codec)
	if name == "" {
		name = cfg.Host.Codec
	}
	codec, err := hub.CodecByName(name)
	if err != nil {
		return nil, err
	}
	if ws := strings.TrimSpace(f.websocket); ws != "" {
		return hostlink.DialWebSocket(cmdCtx, ws, codec)
	}
	return hostlink.Dial(cmdCtx, cfg.Host.SocketPath, codec)
}

func newHostTapCommand(ctx *commandContext) *cobra.Command {
	var (
		dialFlags hostDialFlags
		kinds     []string
		count     int
	)
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Connect to the host link and print events as the host would see them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dialFlags.dial(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			go func() {
				<-cmd.Context().Done()
				_ = client.Close()
			}()

			out := cmd.OutOrStdout()
			hello := client.Hello()
			fmt.Fprintf(out, "Connected (protocol %d, codec %s, cursor %d, capturing %s)\n",
				hello.Version, hello.Codec, hello.Cursor, yesNo(hello.Capturing))

			if len(kinds) > 0 {
				subscribe := hostlink.Command{Command: hostlink.CmdSubscribe}
				for _, k := range kinds {
					subscribe.Kinds = append(subscribe.Kinds, capture.EventKind(strings.TrimSpace(k)))
				}
				if _, err := client.Call(subscribe); err != nil {
					return fmt.Errorf("subscribe: %w", err)
				}
			}

			seen := 0
			for count <= 0 || seen < count {
				msg, err := client.Recv()
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				switch {
				case msg.Record != nil:
					fmt.Fprintln(out, formatRecord(*msg.Record))
					seen++
				case msg.Lagged != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: link lagged, %d events missed\n", msg.Lagged.Missed)
				}
			}
			return nil
		},
	}
	dialFlags.register(cmd)
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only receive these event kinds (repeatable)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many events (0 waits until interrupted)")
	return cmd
}

func newHostPingCommand(ctx *commandContext) *cobra.Command {
	var dialFlags hostDialFlags
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the host link accepts commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := dialFlags.dial(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			if _, err := client.Call(hostlink.Command{Command: hostlink.CmdPing}); err != nil {
				return err
			}
			reply, err := client.Call(hostlink.Command{Command: hostlink.CmdStatus})
			if err != nil {
				return err
			}
			state := "idle"
			if reply.Status != nil && reply.Status.Capturing {
				state = "capturing " + reply.Status.SessionID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Host link OK (%s, %s)\n", client.Hello().Codec, state)
			return nil
		},
	}
	dialFlags.register(cmd)
	return cmd
}
