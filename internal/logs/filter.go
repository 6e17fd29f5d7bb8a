package logs

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Filter narrows tailed lines. The zero value matches everything.
type Filter struct {
	// Level is the minimum slog level name (debug, info, warn, error).
	Level     string `json:"level,omitempty"`
	Component string `json:"component,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Search    string `json:"search,omitempty"`
}

// Empty reports whether f matches every line.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Level) == "" &&
		strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.SessionID) == "" &&
		strings.TrimSpace(f.Search) == ""
}

type jsonLine struct {
	Level     string `json:"level"`
	Component string `json:"component"`
	SessionID string `json:"session_id"`
}

// Match reports whether line passes f. Structured predicates only apply to
// JSON lines; console lines are matched by substring.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	if search := strings.TrimSpace(f.Search); search != "" &&
		!strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
		return false
	}

	var fields jsonLine
	structured := strings.HasPrefix(strings.TrimSpace(line), "{") &&
		json.Unmarshal([]byte(line), &fields) == nil
	if !structured {
		return f.matchText(line)
	}
	if want := strings.TrimSpace(f.Component); want != "" && !strings.EqualFold(fields.Component, want) {
		return false
	}
	if want := strings.TrimSpace(f.SessionID); want != "" && fields.SessionID != want {
		return false
	}
	if floor, ok := parseLevel(f.Level); ok {
		got, ok := parseLevel(fields.Level)
		if ok && got < floor {
			return false
		}
	}
	return true
}

func (f Filter) matchText(line string) bool {
	for _, needle := range []string{f.Component, f.SessionID} {
		if needle = strings.TrimSpace(needle); needle != "" && !strings.Contains(line, needle) {
			return false
		}
	}
	if floor, ok := parseLevel(f.Level); ok && floor > slog.LevelDebug {
		upper := strings.ToUpper(line)
		for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
			if lvl < floor && strings.Contains(upper, " "+lvl.String()+" ") {
				return false
			}
		}
	}
	return true
}

func parseLevel(value string) (slog.Level, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(value)); err != nil {
		return 0, false
	}
	return lvl, true
}
