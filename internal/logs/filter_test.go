package logs_test

import (
	"testing"

	"confcap/internal/logs"
)

func TestFilterMatch(t *testing.T) {
	jsonWarn := `{"level":"WARN","component":"capture","session_id":"s1","msg":"encoder stalled"}`
	jsonInfo := `{"level":"INFO","component":"hub","msg":"served"}`
	console := "2026-01-02 10:00:00 INFO capture started session_id=s1"

	tests := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty matches all", logs.Filter{}, jsonInfo, true},
		{"component match", logs.Filter{Component: "capture"}, jsonWarn, true},
		{"component mismatch", logs.Filter{Component: "capture"}, jsonInfo, false},
		{"level floor passes", logs.Filter{Level: "warn"}, jsonWarn, true},
		{"level floor rejects", logs.Filter{Level: "warn"}, jsonInfo, false},
		{"session match", logs.Filter{SessionID: "s1"}, jsonWarn, true},
		{"session mismatch", logs.Filter{SessionID: "s2"}, jsonWarn, false},
		{"search case insensitive", logs.Filter{Search: "STALLED"}, jsonWarn, true},
		{"console substring", logs.Filter{SessionID: "s1"}, console, true},
		{"console level", logs.Filter{Level: "error"}, console, false},
		{"unknown level ignored", logs.Filter{Level: "loud"}, jsonInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.line); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
