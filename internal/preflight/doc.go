// Package preflight provides readiness checks for the filesystem paths,
// encoders, and audio sources confcap depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure so a broken
//     runtime directory or missing microphone shows up before a host connects.
//   - The CLI "confcap status" command renders the same results alongside the
//     dependency table from CheckSystemDeps.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
