// Package tracks holds the daemon's view of the conference track list.
//
// The host pushes track descriptors (directly or as a YAML manifest); the
// store opens each audio source as an audio.Stream and notifies the capture
// controller whenever the list changes or a stream ends.
package tracks
