// Package main hosts the confcap CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the capture daemon: session start and stop, transcription toggles,
// track manifests, event and log tailing, and journal queries. Configuration
// resolution and socket discovery live in commandContext so subcommands only
// render results.
//
// New behavior belongs in the internal packages first; commands here should
// stay thin wrappers over ipc.Client and daemonctl.
package main
