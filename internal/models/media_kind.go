package models

import "strings"

// MediaKind distinguishes feature films from TV series/episodes
type MediaKind int

const (
	KindUnspecified MediaKind = iota
	KindMovie
	KindEpisode
)

// String returns the string representation of the kind
func (k MediaKind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindEpisode:
		return "episode"
	default:
		return "unspecified"
	}
}

// ParseMediaKind converts a kind string to MediaKind. "tv", "series" and "show" map to KindEpisode.
func ParseMediaKind(kindStr string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(kindStr)) {
	case "movie", "film":
		return KindMovie
	case "episode", "tv", "series", "show":
		return KindEpisode
	default:
		return KindUnspecified
	}
}

// MarshalJSON implements json.Marshaler interface
func (k MediaKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler interface
func (k *MediaKind) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	*k = ParseMediaKind(str)
	return nil
}
