package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommands_ValidateArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"search without title", []string{"search"}, "a title or --imdb is required"},
		{"subtitles without url", []string{"subtitles"}, "accepts 1 arg"},
		{"subtitles season only", []string{"subtitles", "https://www.opensubtitles.org/x", "--season", "1"}, "must be given together"},
		{"download without id", []string{"download"}, "a subtitle id or --url is required"},
		{"serve with args", []string{"serve", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)
			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCommands_Registered(t *testing.T) {
	for _, name := range []string{"serve", "search", "subtitles", "download"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("Expected command %q to be registered", name)
		}
	}
}
