package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/testutil"
)

func listingContext() ListingContext {
	return ListingContext{
		BaseURL:         testBaseURL,
		DownloadBaseURL: "https://dl.opensubtitles.org",
		PageURL:         "https://www.opensubtitles.org/en/search/sublanguageid-all/idmovie-19984",
	}
}

func TestListingExtractor_UnknownLanguageKept(t *testing.T) {
	t.Parallel()

	html := testutil.GenerateListingPageHTML("Avatar (2009)", []testutil.SubtitleRowOptions{
		{SubtitleID: 101, Slug: "avatar-en", LanguageTitle: "English", Release: "Avatar.2009.1080p.BluRay"},
		{SubtitleID: 102, Slug: "avatar-xx", LanguageTitle: "xx", Release: "Avatar.2009.720p.WEB"},
	})

	entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Language.Code != "en" {
		t.Errorf("Expected first entry in English, got %+v", entries[0].Language)
	}
	if entries[1].Language != language.Unknown {
		t.Errorf("Expected second entry Unknown, got %+v", entries[1].Language)
	}
}

func TestListingExtractor_FullRow(t *testing.T) {
	t.Parallel()

	html := testutil.GenerateListingPageHTML("Avatar (2009)", []testutil.SubtitleRowOptions{
		{
			SubtitleID:    3456789,
			Slug:          "avatar-fr",
			LanguageTitle: "French",
			LanguageCode:  "fre",
			Release:       "Avatar.2009.Extended.1080p.BluRay.x264-SPARKS",
			UploadDate:    "24/12/2009",
			FPS:           "23.976",
			Downloads:     15234,
			Rating:        "8.5",
			Votes:         12,
			Uploader:      "subber",
		},
	})

	entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.ID != "3456789" {
		t.Errorf("Expected ID 3456789, got %q", e.ID)
	}
	if e.Language.Code != "fr" {
		t.Errorf("Expected French, got %+v", e.Language)
	}
	if e.ReleaseName != "Avatar.2009.Extended.1080p.BluRay.x264-SPARKS" {
		t.Errorf("Unexpected release name %q", e.ReleaseName)
	}
	if e.Uploader != "subber" {
		t.Errorf("Expected uploader subber, got %q", e.Uploader)
	}
	if e.DownloadCount == nil || *e.DownloadCount != 15234 {
		t.Errorf("Expected download count 15234, got %v", e.DownloadCount)
	}
	if e.Rating == nil || *e.Rating != 8.5 {
		t.Errorf("Expected rating 8.5, got %v", e.Rating)
	}
	if e.FPS == nil || *e.FPS != 23.976 {
		t.Errorf("Expected FPS 23.976, got %v", e.FPS)
	}
	wantDate := time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC)
	if e.UploadedAt == nil || !e.UploadedAt.Equal(wantDate) {
		t.Errorf("Expected upload date %v, got %v", wantDate, e.UploadedAt)
	}
	if e.DownloadURL != "https://www.opensubtitles.org/en/subtitleserve/sub/3456789" {
		t.Errorf("Unexpected download URL %q", e.DownloadURL)
	}
	if e.DetailURL != "https://www.opensubtitles.org/en/subtitles/3456789/avatar-fr" {
		t.Errorf("Unexpected detail URL %q", e.DetailURL)
	}
	if e.FileName != "Avatar.2009.Extended.1080p.BluRay.x264-SPARKS.fr.srt" {
		t.Errorf("Unexpected file name %q", e.FileName)
	}
	if e.HearingImpaired || e.Forced {
		t.Errorf("Expected no HI/forced flags, got %v/%v", e.HearingImpaired, e.Forced)
	}
}

func TestListingExtractor_LanguageCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  testutil.SubtitleRowOptions
		want string
	}{
		{"link title", testutil.SubtitleRowOptions{LanguageTitle: "German", Slug: "x-xx"}, "de"},
		{"sublanguage code", testutil.SubtitleRowOptions{LanguageCode: "pob", Slug: "x-xx"}, "pt-BR"},
		{"flag class", testutil.SubtitleRowOptions{FlagClass: "br", Slug: "x-xx"}, "pt-BR"},
		{"flag class direct", testutil.SubtitleRowOptions{FlagClass: "hu", Slug: "x-xx"}, "hu"},
		{"url slug", testutil.SubtitleRowOptions{Slug: "avatar-es"}, "es"},
		{"unresolvable title falls through", testutil.SubtitleRowOptions{LanguageTitle: "Klingon", Slug: "avatar-it"}, "it"},
		{"nothing resolves", testutil.SubtitleRowOptions{LanguageTitle: "Klingon", Slug: "avatar-zz"}, "und"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.row.SubtitleID = 5
			html := testutil.GenerateListingPageHTML("Avatar (2009)", []testutil.SubtitleRowOptions{tt.row})
			entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry, got %d", len(entries))
			}
			if got := entries[0].Language.Code; got != tt.want {
				t.Errorf("Language = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListingExtractor_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		row        testutil.SubtitleRowOptions
		wantHI     bool
		wantForced bool
	}{
		{"hearing icon", testutil.SubtitleRowOptions{HearingIcon: true}, true, false},
		{"foreign icon", testutil.SubtitleRowOptions{ForeignIcon: true}, false, true},
		{"sdh release", testutil.SubtitleRowOptions{Release: "Movie.2020.SDH.WEB"}, true, false},
		{"forced release", testutil.SubtitleRowOptions{Release: "Movie.2020.Forced.WEB"}, false, true},
		{"plain", testutil.SubtitleRowOptions{Release: "Movie.2020.Hindi.WEB"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.row.LanguageTitle = "English"
			html := testutil.GenerateListingPageHTML("Movie (2020)", []testutil.SubtitleRowOptions{tt.row})
			entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry, got %d", len(entries))
			}
			e := entries[0]
			if e.HearingImpaired != tt.wantHI || e.Forced != tt.wantForced {
				t.Errorf("HI/forced = %v/%v, want %v/%v", e.HearingImpaired, e.Forced, tt.wantHI, tt.wantForced)
			}
			if e.Language.HearingImpaired != tt.wantHI {
				t.Errorf("Language flag HI = %v, want %v", e.Language.HearingImpaired, tt.wantHI)
			}
		})
	}
}

func TestListingExtractor_FallbackDownloadURL(t *testing.T) {
	t.Parallel()

	html := testutil.GenerateListingPageHTML("Heat (1995)", []testutil.SubtitleRowOptions{
		{SubtitleID: 424242, LanguageTitle: "English", NoServeLink: true},
	})

	entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].DownloadURL; got != "https://dl.opensubtitles.org/en/download/sub/424242" {
		t.Errorf("Unexpected fallback download URL %q", got)
	}
	if entries[0].DownloadCount != nil {
		t.Errorf("Expected no download count, got %d", *entries[0].DownloadCount)
	}
}

func TestListingExtractor_MatchStates(t *testing.T) {
	t.Parallel()

	entries, err := NewListingExtractor(nil).Extract(strings.NewReader(testutil.GenerateListingPageHTML("Empty", nil)), listingContext())
	if err != nil {
		t.Fatalf("Expected no error for an empty table, got %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected an empty slice, got %v", entries)
	}

	noSubs := `<html><body><div class="msg">There are no subtitles for this title yet.</div></body></html>`
	entries, err = NewListingExtractor(nil).Extract(strings.NewReader(noSubs), listingContext())
	if err != nil || len(entries) != 0 {
		t.Errorf("Expected empty result for the no-subtitles marker, got %v, %v", entries, err)
	}

	_, err = NewListingExtractor(nil).Extract(strings.NewReader(testutil.GenerateUnrecognizedPageHTML()), listingContext())
	if !errors.Is(err, apperrors.ErrStructuralMismatch) {
		t.Errorf("Expected structural mismatch, got %v", err)
	}
}

func TestListingExtractor_SkipsDuplicates(t *testing.T) {
	t.Parallel()

	html := testutil.GenerateListingPageHTML("Heat (1995)", []testutil.SubtitleRowOptions{
		{SubtitleID: 7, LanguageTitle: "English"},
		{SubtitleID: 7, LanguageTitle: "English"},
	})
	entries, err := NewListingExtractor(nil).Extract(strings.NewReader(html), listingContext())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected duplicates to collapse, got %d entries", len(entries))
	}
}

// ---------------------------------------------------------------------------
// Episodes
// ---------------------------------------------------------------------------

func TestListingExtractor_ExtractEpisodes(t *testing.T) {
	t.Parallel()

	html := testutil.GenerateSeriesPageHTML(`"Dark" (2017)`, []testutil.EpisodeRowOptions{
		{Season: 1, Episode: 1, Title: "Secrets", IMDBID: 5753856},
		{Season: 1, Episode: 2, Title: "Lies", IMDBID: 5753858},
		{Season: 2, Episode: 1, Title: "Beginnings and Endings", IMDBID: 6315600, OmitNumber: true},
		{Season: 2, Episode: 2, Title: "Dark Matter", IMDBID: 6315602, OmitNumber: true},
	})

	episodes, err := NewListingExtractor(nil).ExtractEpisodes(strings.NewReader(html), listingContext())
	if err != nil {
		t.Fatalf("ExtractEpisodes failed: %v", err)
	}

	want := []models.EpisodeRef{
		{Season: 1, Episode: 1, Title: "Secrets", URL: "https://www.opensubtitles.org/en/search/sublanguageid-all/imdbid-5753856"},
		{Season: 1, Episode: 2, Title: "Lies", URL: "https://www.opensubtitles.org/en/search/sublanguageid-all/imdbid-5753858"},
		{Season: 2, Episode: 1, Title: "Beginnings and Endings", URL: "https://www.opensubtitles.org/en/search/sublanguageid-all/imdbid-6315600"},
		{Season: 2, Episode: 2, Title: "Dark Matter", URL: "https://www.opensubtitles.org/en/search/sublanguageid-all/imdbid-6315602"},
	}
	if len(episodes) != len(want) {
		t.Fatalf("Expected %d episodes, got %d: %+v", len(want), len(episodes), episodes)
	}
	for i := range want {
		if episodes[i] != want[i] {
			t.Errorf("Episode %d = %+v, want %+v", i, episodes[i], want[i])
		}
	}
}

func TestIsSeriesPage(t *testing.T) {
	t.Parallel()

	series := testutil.GenerateSeriesPageHTML("Dark", []testutil.EpisodeRowOptions{{Season: 1, Episode: 1, Title: "Secrets", IMDBID: 1}})
	if !IsSeriesPage(strings.NewReader(series)) {
		t.Error("Expected series page to be recognized")
	}
	listing := testutil.GenerateListingPageHTML("Heat", []testutil.SubtitleRowOptions{{LanguageTitle: "English"}})
	if IsSeriesPage(strings.NewReader(listing)) {
		t.Error("Expected listing page not to be a series page")
	}
}

func TestParseUploadDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2009-12-24", time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC), true},
		{"12/24/2009", time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC), true},
		{"24/12/2009", time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC), true},
		{"24.12.2009", time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC), true},
		{"24-12-2009", time.Date(2009, 12, 24, 0, 0, 0, 0, time.UTC), true},
		{"uploaded 03/04/2010 by x", time.Date(2010, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"2009-13-40", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseUploadDate(tt.in)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("ParseUploadDate(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSubtitleFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry models.SubtitleEntry
		want  string
	}{
		{"release and language", models.SubtitleEntry{ID: "1", ReleaseName: "Heat 1995 BluRay", Language: language.Resolve("en")}, "Heat.1995.BluRay.en.srt"},
		{"unknown language", models.SubtitleEntry{ID: "1", ReleaseName: "Heat", Language: language.Unknown}, "Heat.srt"},
		{"no release", models.SubtitleEntry{ID: "42", Language: language.Resolve("en")}, "42.srt"},
		{"unsafe characters", models.SubtitleEntry{ID: "1", ReleaseName: `What/If: "Pilot"`, Language: language.Unknown}, "What_If_._Pilot_.srt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubtitleFileName(tt.entry); got != tt.want {
				t.Errorf("SubtitleFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}
