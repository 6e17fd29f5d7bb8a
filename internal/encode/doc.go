// Package encode provides the capture encoders: an ffmpeg subprocess that
// produces Opus in WebM or Ogg, and a native streaming WAV writer.
//
// Registry implements capture.EncoderFactory and decides which MIME types are
// available from the configured ffmpeg binary.
package encode
