package parser

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"
	"github.com/LavX/opensubtitles-scraper/internal/payload"
	"github.com/LavX/opensubtitles-scraper/internal/testutil"
)

func testEntry() models.SubtitleEntry {
	return models.SubtitleEntry{
		ID:          "123",
		ReleaseName: "Avatar.2009",
		Language:    language.Resolve("en"),
		FileName:    "Avatar.2009.en.srt",
	}
}

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestDownloadExtractor_RejectsHTML(t *testing.T) {
	t.Parallel()

	page := []byte(testutil.GenerateDownloadPageHTML("/en/subtitleserve/sub/123"))
	challenge := []byte(`<!DOCTYPE html><html><head><title>Just a moment...</title></head><body><script>window._cf_chl_opt={}</script></body></html>`)

	tests := []struct {
		name       string
		header     http.Header
		body       []byte
		wantDetail string
	}{
		{"html content type", header("Content-Type", "text/html; charset=utf-8"), page, "wait page"},
		{"html body behind octet-stream", header("Content-Type", "application/octet-stream"), page, "wait page"},
		{"challenge page", header("Content-Type", "text/plain"), challenge, "challenge page"},
		{"xhtml", header("Content-Type", "application/xhtml+xml"), []byte(testutil.SampleSRT), "HTML page"},
		{"too small", header(), []byte("1\n"), "too small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: tt.header, Body: tt.body}, testEntry())
			if !errors.Is(err, apperrors.ErrUnexpectedPayload) {
				t.Fatalf("Expected UnexpectedPayload, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantDetail) {
				t.Errorf("Expected error to mention %q, got %q", tt.wantDetail, err.Error())
			}
		})
	}
}

func TestDownloadExtractor_PlainSRT(t *testing.T) {
	t.Parallel()

	resp := DownloadResponse{
		Header: header(
			"Content-Type", "application/octet-stream",
			"Content-Disposition", `attachment; filename="Avatar.2009.BluRay.srt"`,
		),
		Body: []byte(testutil.SampleSRT),
	}

	p, err := NewDownloadExtractor(testBaseURL, false).Extract(resp, testEntry())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.FileName != "Avatar.2009.BluRay.srt" {
		t.Errorf("Expected Content-Disposition file name, got %q", p.FileName)
	}
	if p.Encoding != payload.EncodingUTF8 {
		t.Errorf("Expected utf-8, got %q", p.Encoding)
	}
	if p.ContentType != "application/x-subrip" {
		t.Errorf("Unexpected content type %q", p.ContentType)
	}
	if string(p.Content) != testutil.SampleSRT {
		t.Errorf("Expected content untouched without conversion")
	}
}

func TestDownloadExtractor_PlainWithoutDisposition(t *testing.T) {
	t.Parallel()

	p, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header(), Body: []byte(testutil.SampleSRT)}, testEntry())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.FileName != "Avatar.2009.en.srt" {
		t.Errorf("Expected entry file name, got %q", p.FileName)
	}
}

func TestDownloadExtractor_NotASubtitle(t *testing.T) {
	t.Parallel()

	body := []byte(`{"error":"quota exceeded","retry_after":3600}`)
	_, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header("Content-Type", "application/json"), Body: body}, testEntry())
	if !errors.Is(err, apperrors.ErrUnexpectedPayload) {
		t.Fatalf("Expected UnexpectedPayload, got %v", err)
	}
}

func TestDownloadExtractor_Zip(t *testing.T) {
	t.Parallel()

	body := testutil.ZipBytes(t, map[string]string{
		"Avatar.2009.en.srt": testutil.SampleSRT,
		"readme.nfo":         "ripped by nobody, enjoy the movie",
	})
	resp := DownloadResponse{
		Header: header("Content-Type", "application/zip", "Content-Disposition", `attachment; filename="avatar.zip"`),
		Body:   body,
	}

	p, err := NewDownloadExtractor(testBaseURL, false).Extract(resp, testEntry())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.FileName != "Avatar.2009.en.srt" {
		t.Errorf("Expected inner archive name, got %q", p.FileName)
	}
	if string(p.Content) != testutil.SampleSRT {
		t.Errorf("Unexpected content %q", p.Content)
	}
}

func TestDownloadExtractor_ZipEpisode(t *testing.T) {
	t.Parallel()

	body := testutil.ZipBytes(t, map[string]string{
		"Dark.S01E01.srt": testutil.SampleSRT,
		"Dark.S01E02.srt": testutil.SampleSRT + "\r\n3\r\n00:00:09,000 --> 00:00:10,000\r\nLonger\r\n",
		"Dark.S01E03.srt": testutil.SampleSRT,
	})

	p, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header(), Body: body, Episode: 3}, models.SubtitleEntry{ID: "9"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.FileName != "Dark.S01E03.srt" {
		t.Errorf("Expected episode 3 file, got %q", p.FileName)
	}
}

func TestDownloadExtractor_ZipWithoutSubtitles(t *testing.T) {
	t.Parallel()

	body := testutil.ZipBytes(t, map[string]string{"readme.nfo": "nothing to see here, move along"})
	_, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header(), Body: body}, testEntry())

	var notFound *apperrors.ErrSubtitleNotFoundInArchive
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ErrSubtitleNotFoundInArchive, got %v", err)
	}
	if notFound.FileCount != 1 {
		t.Errorf("Expected file count 1, got %d", notFound.FileCount)
	}
}

func TestDownloadExtractor_CorruptZip(t *testing.T) {
	t.Parallel()

	body := append([]byte("PK\x03\x04"), make([]byte, 64)...)
	_, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header(), Body: body}, testEntry())
	if !errors.Is(err, apperrors.ErrUnexpectedPayload) {
		t.Fatalf("Expected UnexpectedPayload, got %v", err)
	}
}

func TestDownloadExtractor_ConvertToUTF8(t *testing.T) {
	t.Parallel()

	body := []byte("1\r\n00:00:01,000 --> 00:00:02,000\r\nCaf\xe9 cr\xe8me\r\n")

	p, err := NewDownloadExtractor(testBaseURL, true).Extract(DownloadResponse{Header: header(), Body: body}, testEntry())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.Encoding != payload.EncodingUTF8 {
		t.Errorf("Expected utf-8 after conversion, got %q", p.Encoding)
	}
	want := "1\n00:00:01,000 --> 00:00:02,000\nCafé crème\n"
	if string(p.Content) != want {
		t.Errorf("Content = %q, want %q", p.Content, want)
	}

	raw, err := NewDownloadExtractor(testBaseURL, false).Extract(DownloadResponse{Header: header(), Body: body}, testEntry())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if raw.Encoding != payload.EncodingCP1252 {
		t.Errorf("Expected windows-1252 without conversion, got %q", raw.Encoding)
	}
}

// ---------------------------------------------------------------------------
// Download pages
// ---------------------------------------------------------------------------

func TestDownloadExtractor_FindDownloadLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			name: "direct download host",
			html: `<html><body><a href="/en/subtitleserve/sub/1">serve</a><a href="https://dl.opensubtitles.org/en/download/sub/123">dl</a></body></html>`,
			want: "https://dl.opensubtitles.org/en/download/sub/123",
			ok:   true,
		},
		{
			name: "subtitleserve link",
			html: testutil.GenerateDownloadPageHTML("/en/subtitleserve/sub/123"),
			want: "https://www.opensubtitles.org/en/subtitleserve/sub/123",
			ok:   true,
		},
		{
			name: "link inside script",
			html: `<html><body><script>setTimeout(function(){location.href='/en/subtitleserve/sub/456'},3000)</script></body></html>`,
			want: "https://www.opensubtitles.org/en/subtitleserve/sub/456",
			ok:   true,
		},
		{
			name: "meta refresh",
			html: `<html><head><meta http-equiv="refresh" content="5; url=/en/download/file/789"></head><body></body></html>`,
			want: "https://www.opensubtitles.org/en/download/file/789",
			ok:   true,
		},
		{
			name: "nothing",
			html: `<html><body><p>Please solve the captcha</p></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NewDownloadExtractor(testBaseURL, false).FindDownloadLink(strings.NewReader(tt.html))
			if ok != tt.ok || got != tt.want {
				t.Errorf("FindDownloadLink() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	if !LooksLikeHTML(header("Content-Type", "text/html"), []byte("anything")) {
		t.Error("Expected text/html content type to count as HTML")
	}
	if !LooksLikeHTML(header(), []byte("<html><body>hi</body></html>")) {
		t.Error("Expected sniffed HTML body to count as HTML")
	}
	if LooksLikeHTML(header("Content-Type", "application/x-subrip"), []byte(testutil.SampleSRT)) {
		t.Error("Expected SRT not to count as HTML")
	}
}
