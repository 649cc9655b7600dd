// Package payload unpacks and inspects downloaded subtitle files.
package payload

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/nwaples/rardecode/v2"
)

const (
	// MaxFileSize bounds a single uncompressed archive member.
	MaxFileSize = 20 * 1024 * 1024
	// MaxTotalSize bounds all uncompressed members of one archive.
	MaxTotalSize = 50 * 1024 * 1024
)

// Format identifies the container a payload arrived in.
type Format string

const (
	FormatPlain Format = "plain"
	FormatZip   Format = "zip"
	FormatRar   Format = "rar"
	FormatGzip  Format = "gzip"
	FormatHTML  Format = "html"
)

// File is one member of an unpacked archive.
type File struct {
	Name    string
	Content []byte
}

// Detect classifies data by its magic bytes.
func Detect(data []byte) Format {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/zip"):
			return FormatZip
		case mt.Is("application/x-rar-compressed"):
			return FormatRar
		case mt.Is("application/gzip"):
			return FormatGzip
		case mt.Is("text/html"), mt.Is("application/xhtml+xml"):
			return FormatHTML
		}
	}
	return FormatPlain
}

// Unpack returns the members of an archive. Plain payloads come back as a single file named name.
func Unpack(data []byte, format Format, name string) ([]File, error) {
	switch format {
	case FormatZip:
		return unpackZip(data)
	case FormatRar:
		return unpackRar(data)
	case FormatGzip:
		return unpackGzip(data, name)
	default:
		return []File{{Name: name, Content: data}}, nil
	}
}

func unpackZip(data []byte) ([]File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}
	if err := checkZipBomb(zr); err != nil {
		return nil, err
	}

	var files []File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in ZIP: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s from ZIP: %w", f.Name, err)
		}
		if len(content) > MaxFileSize {
			return nil, fmt.Errorf("ZIP bomb detected: %s exceeds maximum uncompressed size", f.Name)
		}
		files = append(files, File{Name: memberName(f.Name), Content: content})
	}
	return files, nil
}

// checkZipBomb inspects the central directory before anything is decompressed.
func checkZipBomb(zr *zip.Reader) error {
	var total uint64
	for _, f := range zr.File {
		if f.UncompressedSize64 > MaxFileSize {
			return fmt.Errorf("ZIP bomb detected: %s exceeds maximum uncompressed size (%d bytes)", f.Name, f.UncompressedSize64)
		}
		total += f.UncompressedSize64
		if total > MaxTotalSize {
			return fmt.Errorf("ZIP bomb detected: archive exceeds maximum uncompressed size (%d bytes)", total)
		}
	}
	return nil
}

func unpackRar(data []byte) ([]File, error) {
	rr, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open RAR archive: %w", err)
	}

	var (
		files []File
		total int
	)
	for {
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read RAR archive: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rr, MaxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s from RAR: %w", hdr.Name, err)
		}
		if len(content) > MaxFileSize {
			return nil, fmt.Errorf("RAR bomb detected: %s exceeds maximum uncompressed size", hdr.Name)
		}
		total += len(content)
		if total > MaxTotalSize {
			return nil, fmt.Errorf("RAR bomb detected: archive exceeds maximum uncompressed size")
		}
		files = append(files, File{Name: memberName(hdr.Name), Content: content})
	}
	return files, nil
}

func unpackGzip(data []byte, name string) ([]File, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gr.Close()

	content, err := io.ReadAll(io.LimitReader(gr, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream: %w", err)
	}
	if len(content) > MaxFileSize {
		return nil, fmt.Errorf("gzip bomb detected: stream exceeds maximum uncompressed size")
	}
	if gr.Name != "" {
		name = gr.Name
	}
	return []File{{Name: memberName(strings.TrimSuffix(name, ".gz")), Content: content}}, nil
}

// memberName strips directories and replaces bytes that are not valid UTF-8
// (archives built on Windows often carry Windows-1252 names).
func memberName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.ToValidUTF8(path.Base(name), "\uFFFD")
}

// SelectOptions guides the choice of one subtitle out of an archive.
type SelectOptions struct {
	PreferredName string
	Episode       int
}

// Select picks the subtitle to return: the preferred name, then the requested
// episode, then the largest .srt, then the largest subtitle file of any kind.
func Select(files []File, format Format, opts SelectOptions) (File, error) {
	var subs []File
	for _, f := range files {
		if IsSubtitleFile(f.Name) {
			subs = append(subs, f)
		}
	}
	if len(subs) == 0 {
		if format == FormatPlain && len(files) == 1 {
			return files[0], nil
		}
		return File{}, &apperrors.ErrSubtitleNotFoundInArchive{Format: string(format), FileCount: len(files)}
	}

	if opts.PreferredName != "" {
		want := strings.ToLower(strings.TrimSuffix(opts.PreferredName, path.Ext(opts.PreferredName)))
		for _, f := range subs {
			if strings.ToLower(strings.TrimSuffix(f.Name, path.Ext(f.Name))) == want {
				return f, nil
			}
		}
	}

	if opts.Episode > 0 {
		pattern := episodePattern(opts.Episode)
		for _, f := range subs {
			if pattern.MatchString(f.Name) {
				return f, nil
			}
		}
	}

	sort.SliceStable(subs, func(i, j int) bool {
		si, sj := isSRT(subs[i].Name), isSRT(subs[j].Name)
		if si != sj {
			return si
		}
		return len(subs[i].Content) > len(subs[j].Content)
	})
	return subs[0], nil
}

// episodePattern matches S03E01, 3x01 or E01 with word boundaries so E01 does not match E010.
func episodePattern(episode int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(?:s\d+e%02d(?:\D|$)|e%02d(?:\D|$)|\d+x%02d(?:\D|$))`, episode, episode, episode))
}

func isSRT(name string) bool {
	return strings.EqualFold(path.Ext(name), ".srt")
}
