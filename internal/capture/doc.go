// Package capture implements the conference audio-capture session: it admits
// live participant streams into a shared mix, samples per-source levels,
// debounces voice activity, encodes the mix in fixed time slices, and forwards
// every result as a typed Event to a single Sink.
//
// The Controller owns one session at a time. All registry mutations, VAD
// transitions, and emissions are serialized by the controller; stream frame
// callbacks touch only per-source taps until they need to emit. Periodic work
// and timers come from a Clock so tests can drive time by hand.
package capture
