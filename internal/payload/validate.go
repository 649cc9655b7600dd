package payload

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

var subtitleExtensions = map[string]bool{
	".srt": true,
	".sub": true,
	".ass": true,
	".ssa": true,
	".vtt": true,
	".smi": true,
	".txt": true,
}

var srtTimestamp = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}`)
var microDVDLine = regexp.MustCompile(`(?m)^\{\d+\}\{\d*\}`)

// IsSubtitleFile reports whether name carries a subtitle extension.
func IsSubtitleFile(name string) bool {
	return subtitleExtensions[strings.ToLower(filepath.Ext(name))]
}

// LooksLikeSubtitle checks the decoded text for a known subtitle structure:
// SRT/VTT cue timings, an ASS/SSA script header or MicroDVD frame markers.
func LooksLikeSubtitle(content []byte) bool {
	head := content
	if len(head) > 64*1024 {
		head = head[:64*1024]
	}
	switch {
	case srtTimestamp.Match(head):
		return true
	case bytes.Contains(head, []byte("[Script Info]")):
		return true
	case bytes.HasPrefix(bytes.TrimLeft(head, "\ufeff \r\n"), []byte("WEBVTT")):
		return true
	case microDVDLine.Match(head):
		return true
	}
	return false
}

// ExtensionForContentType derives a file extension from a MIME type.
func ExtensionForContentType(contentType string) string {
	ctLower := strings.ToLower(contentType)

	// most specific first so "x-subrip" does not fall into "x-sub"
	switch {
	case strings.Contains(ctLower, "gzip"):
		return ".gz"
	case strings.Contains(ctLower, "zip"):
		return ".zip"
	case strings.Contains(ctLower, "rar"):
		return ".rar"
	case strings.Contains(ctLower, "x-subrip"):
		return ".srt"
	case strings.Contains(ctLower, "x-ass"), strings.Contains(ctLower, "/ass"):
		return ".ass"
	case strings.Contains(ctLower, "x-ssa"):
		return ".ssa"
	case strings.Contains(ctLower, "vtt"):
		return ".vtt"
	case strings.Contains(ctLower, "x-sub"):
		return ".sub"
	}
	return ".srt"
}

// ContentTypeForFile derives a MIME type from a file extension.
func ContentTypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".srt":
		return "application/x-subrip"
	case ".ass":
		return "application/x-ass"
	case ".ssa":
		return "application/x-ssa"
	case ".vtt":
		return "text/vtt"
	case ".sub":
		return "application/x-sub"
	case ".smi":
		return "application/smil"
	case ".txt":
		return "text/plain"
	case ".zip":
		return "application/zip"
	case ".rar":
		return "application/x-rar-compressed"
	default:
		return "application/octet-stream"
	}
}
