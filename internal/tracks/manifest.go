package tracks

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"confcap/internal/capture"
)

// MicrophoneSource selects the local PortAudio input device.
const MicrophoneSource = "microphone"

// Descriptor describes one track the host knows about.
type Descriptor struct {
	ID            string            `yaml:"id" json:"id"`
	Kind          capture.MediaKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	Locality      capture.Locality  `yaml:"locality" json:"locality"`
	ParticipantID string            `yaml:"participant_id" json:"participant_id"`
	DisplayName   string            `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	// Source is a PCM file or FIFO path, "unix:<socket>", or "microphone".
	Source     string `yaml:"source,omitempty" json:"source,omitempty"`
	SampleRate int    `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
}

// Manifest is the YAML document accepted by LoadManifest.
type Manifest struct {
	Tracks []Descriptor `yaml:"tracks"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) ([]Descriptor, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]struct{}, len(m.Tracks))
	out := make([]Descriptor, 0, len(m.Tracks))
	for i, d := range m.Tracks {
		d = d.normalized()
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("manifest track %d: %w", i, err)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("manifest track %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

func (d Descriptor) normalized() Descriptor {
	d.ID = strings.TrimSpace(d.ID)
	d.ParticipantID = strings.TrimSpace(d.ParticipantID)
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	d.Source = strings.TrimSpace(d.Source)
	d.Kind = capture.MediaKind(strings.ToLower(strings.TrimSpace(string(d.Kind))))
	if d.Kind == "" {
		d.Kind = capture.MediaAudio
	}
	d.Locality = capture.Locality(strings.ToLower(strings.TrimSpace(string(d.Locality))))
	if d.Locality == "" {
		d.Locality = capture.LocalityRemote
	}
	return d
}

// Validate reports the first problem with d.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("id is required")
	}
	switch d.Kind {
	case capture.MediaAudio:
		if d.Source == "" {
			return fmt.Errorf("track %s: source is required for audio", d.ID)
		}
	case capture.MediaVideo:
	default:
		return fmt.Errorf("track %s: unknown kind %q", d.ID, d.Kind)
	}
	switch d.Locality {
	case capture.LocalityLocal:
	case capture.LocalityRemote:
		if d.ParticipantID == "" {
			return fmt.Errorf("track %s: participant_id is required for remote tracks", d.ID)
		}
	default:
		return fmt.Errorf("track %s: unknown locality %q", d.ID, d.Locality)
	}
	if d.SampleRate < 0 {
		return fmt.Errorf("track %s: sample_rate must not be negative", d.ID)
	}
	return nil
}

// sameSource reports whether a and b can share one open stream.
func sameSource(a, b Descriptor) bool {
	return a.Kind == b.Kind && a.Source == b.Source && a.SampleRate == b.SampleRate
}
