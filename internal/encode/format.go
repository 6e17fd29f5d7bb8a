package encode

import (
	"fmt"
	"mime"
	"strings"
)

// Container identifies the output container of an encoder.
type Container string

const (
	ContainerWebM Container = "webm"
	ContainerOgg  Container = "ogg"
	ContainerWAV  Container = "wav"
)

// Format is a parsed encoder MIME type.
type Format struct {
	MimeType  string
	Container Container
	Codec     string
}

// NeedsFFmpeg reports whether the format is produced by the ffmpeg encoder.
func (f Format) NeedsFFmpeg() bool {
	return f.Container != ContainerWAV
}

// ParseFormat maps a MIME type such as "audio/webm;codecs=opus" to a Format.
func ParseFormat(mimeType string) (Format, error) {
	mimeType = strings.TrimSpace(mimeType)
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return Format{}, fmt.Errorf("parse mime type %q: %w", mimeType, err)
	}
	codec := strings.ToLower(strings.TrimSpace(params["codecs"]))
	switch mediaType {
	case "audio/webm":
		if codec != "" && codec != "opus" {
			return Format{}, fmt.Errorf("unsupported webm codec %q", codec)
		}
		return Format{MimeType: mimeType, Container: ContainerWebM, Codec: "opus"}, nil
	case "audio/ogg":
		if codec != "" && codec != "opus" {
			return Format{}, fmt.Errorf("unsupported ogg codec %q", codec)
		}
		return Format{MimeType: mimeType, Container: ContainerOgg, Codec: "opus"}, nil
	case "audio/wav", "audio/wave", "audio/x-wav":
		if codec != "" && codec != "1" {
			return Format{}, fmt.Errorf("unsupported wav codec %q", codec)
		}
		return Format{MimeType: mimeType, Container: ContainerWAV, Codec: "pcm_s16le"}, nil
	default:
		return Format{}, fmt.Errorf("unsupported media type %q", mediaType)
	}
}
