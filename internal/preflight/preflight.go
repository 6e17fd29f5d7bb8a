package preflight

import (
	"context"
	"strings"

	"confcap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Runtime directory", cfg.Paths.RuntimeDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if !cfg.Encoder.DisableFFmpeg {
		results = append(results, CheckOpusEncoder(ctx, cfg.FFmpegBinary()))
	}

	if cfg.Sources.Microphone {
		results = append(results, CheckMicrophone())
	}

	if strings.TrimSpace(cfg.Sources.ManifestPath) != "" {
		results = append(results, CheckManifest(cfg.Sources.ManifestPath))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
