// Package audio defines live PCM streams consumed by the capture graph.
//
// A Stream delivers mono float32 frames to subscribers from its own goroutine.
// Frames for a single stream are delivered sequentially; subscribers of
// different streams may run concurrently. Implementations never invoke a
// subscriber synchronously from Subscribe, so callers may hold locks while
// subscribing.
package audio
