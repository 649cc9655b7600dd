package payload

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encodings reported by DetectEncoding.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
	EncodingCP1252  = "windows-1252"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the text encoding of a subtitle file. A BOM wins;
// otherwise valid UTF-8 is UTF-8 and anything else is treated as Windows-1252,
// the encoding most legacy SRT uploads use.
func DetectEncoding(content []byte) string {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(content, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(content, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(content):
		return EncodingUTF8
	default:
		return EncodingCP1252
	}
}

// ToUTF8 converts content to UTF-8 without a BOM and returns the encoding it came from.
// Content that fails to decode is returned unchanged.
func ToUTF8(content []byte) ([]byte, string) {
	enc := DetectEncoding(content)

	var decoder *encoding.Decoder
	switch enc {
	case EncodingUTF8:
		return bytes.TrimPrefix(content, bomUTF8), enc
	case EncodingUTF16LE:
		decoder = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case EncodingUTF16BE:
		decoder = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	default:
		decoder = charmap.Windows1252.NewDecoder()
	}

	out, err := decoder.Bytes(content)
	if err != nil {
		return content, enc
	}
	return out, enc
}

// NormalizeNewlines rewrites CRLF and lone CR line endings to LF.
func NormalizeNewlines(content []byte) []byte {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
}
