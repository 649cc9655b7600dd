package parser

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// NewUTF8Reader reads the whole page and returns a UTF-8 reader over it together
// with the name of the detected source encoding.
//
// The encoding comes from the byte order mark, then contentType, then a <meta>
// declaration in the first 1024 bytes. When none of those is authoritative, a page
// that is valid UTF-8 as a whole is treated as UTF-8.
func NewUTF8Reader(body io.Reader, contentType string) (io.Reader, string, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read page: %w", err)
	}

	enc, name, certain := charset.DetermineEncoding(content, contentType)
	if !certain && name != "utf-8" && hasNonASCII(content) && utf8.Valid(content) {
		name = "utf-8"
	}
	if name == "utf-8" {
		return bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)), name, nil
	}
	return transform.NewReader(bytes.NewReader(content), enc.NewDecoder()), name, nil
}

func hasNonASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
