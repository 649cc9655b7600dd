package models

import (
	"encoding/json"
	"testing"
)

func TestMediaKind_String(t *testing.T) {
	tests := []struct {
		name string
		kind MediaKind
		want string
	}{
		{"unspecified", KindUnspecified, "unspecified"},
		{"movie", KindMovie, "movie"},
		{"episode", KindEpisode, "episode"},
		{"invalid high value", MediaKind(99), "unspecified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("MediaKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestParseMediaKind(t *testing.T) {
	tests := []struct {
		input string
		want  MediaKind
	}{
		{"movie", KindMovie},
		{"Movie", KindMovie},
		{"film", KindMovie},
		{"episode", KindEpisode},
		{"TV", KindEpisode},
		{" series ", KindEpisode},
		{"", KindUnspecified},
		{"documentary", KindUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseMediaKind(tt.input); got != tt.want {
				t.Errorf("ParseMediaKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMediaKind_JSON(t *testing.T) {
	type wrapper struct {
		Kind MediaKind `json:"kind"`
	}

	data, err := json.Marshal(wrapper{Kind: KindEpisode})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"kind":"episode"}` {
		t.Errorf("Marshal = %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"kind":"tv"}`), &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if w.Kind != KindEpisode {
		t.Errorf("Unmarshal kind = %v, want episode", w.Kind)
	}
}
