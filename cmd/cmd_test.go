package cmd

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short text", 120); got != "short text" {
		t.Errorf("preview() = %q", got)
	}
	if got := preview("line one\nline two", 120); got != "line one line two" {
		t.Errorf("preview() = %q, newlines should flatten", got)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := preview(string(long), 120)
	if len(got) != 123 || got[120:] != "..." {
		t.Errorf("preview() length = %d, want 120 + ellipsis", len(got))
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"serve": false, "sweep": false, "add": false,
		"query": false, "stats": false, "version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
