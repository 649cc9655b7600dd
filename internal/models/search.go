package models

import "github.com/LavX/opensubtitles-scraper/internal/language"

// SearchQuery is built per request and never shared. Languages narrows the
// site search; an empty set searches every language.
type SearchQuery struct {
	Title     string              `json:"title"`
	Year      int                 `json:"year,omitempty"`
	Kind      MediaKind           `json:"kind"`
	Season    int                 `json:"season,omitempty"`
	Episode   int                 `json:"episode,omitempty"`
	IMDBID    string              `json:"imdbId,omitempty"`
	Languages []language.Language `json:"languages,omitempty"`
}

// SearchResult is one title found by a search. DetailURL is always absolute.
type SearchResult struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Year          int       `json:"year,omitempty"`
	Kind          MediaKind `json:"kind"`
	DetailURL     string    `json:"detailUrl"`
	IMDBID        string    `json:"imdbId,omitempty"`
	SubtitleCount int       `json:"subtitleCount"`
}

// EpisodeRef points at the subtitle page of a single episode listed on a series page.
type EpisodeRef struct {
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Video is the identity a provider consumer asks subtitles for.
type Video struct {
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
	IMDBID  string `json:"imdbId,omitempty"`
}

// IsEpisode reports whether the video names a single episode of a series.
func (v Video) IsEpisode() bool {
	return v.Season > 0 && v.Episode > 0
}

// Query converts the video identity into a search query.
func (v Video) Query() SearchQuery {
	q := SearchQuery{
		Title:  v.Title,
		Year:   v.Year,
		Kind:   KindMovie,
		IMDBID: v.IMDBID,
	}
	if v.IsEpisode() {
		q.Kind = KindEpisode
		q.Season = v.Season
		q.Episode = v.Episode
	}
	return q
}
