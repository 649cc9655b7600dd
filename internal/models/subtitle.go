package models

import (
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/language"
)

// SubtitleEntry is one subtitle listed on a title's detail page.
// Language is always a canonical value; DownloadURL and DetailURL are absolute.
type SubtitleEntry struct {
	ID              string            `json:"id"`
	Language        language.Language `json:"language"`
	ReleaseName     string            `json:"releaseName"`
	Uploader        string            `json:"uploader,omitempty"`
	DownloadCount   *int              `json:"downloadCount,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	UploadedAt      *time.Time        `json:"uploadedAt,omitempty"`
	FPS             *float64          `json:"fps,omitempty"`
	HearingImpaired bool              `json:"hearingImpaired"`
	Forced          bool              `json:"forced"`
	DownloadURL     string            `json:"downloadUrl"`
	DetailURL       string            `json:"detailUrl,omitempty"`
	FileName        string            `json:"fileName"`
}

// SubtitlePayload is the downloaded subtitle file handed back to the caller.
type SubtitlePayload struct {
	FileName    string `json:"fileName"`
	Content     []byte `json:"content"`
	Encoding    string `json:"encoding"`
	ContentType string `json:"contentType"`
}
