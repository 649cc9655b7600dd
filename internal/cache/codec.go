package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

var pageMagic = []byte("osp1")

var errBadPage = errors.New("cache: malformed page record")

// encodePage serializes a page for an external backend. The body is gzipped;
// the URL is not stored because it is the key.
func encodePage(p Page) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(pageMagic)
	buf.Write(binary.AppendUvarint(nil, uint64(len(p.FinalURL))))
	buf.WriteString(p.FinalURL)
	buf.Write(binary.AppendVarint(nil, p.FetchedAt.UnixMilli()))

	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(p.Body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePage(url string, data []byte) (Page, error) {
	if !bytes.HasPrefix(data, pageMagic) {
		return Page{}, errBadPage
	}
	r := bytes.NewReader(data[len(pageMagic):])

	n, err := binary.ReadUvarint(r)
	if err != nil || n > uint64(r.Len()) {
		return Page{}, errBadPage
	}
	final := make([]byte, n)
	if _, err := io.ReadFull(r, final); err != nil {
		return Page{}, errBadPage
	}
	fetched, err := binary.ReadVarint(r)
	if err != nil {
		return Page{}, errBadPage
	}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", errBadPage, err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", errBadPage, err)
	}

	return Page{
		URL:       url,
		FinalURL:  string(final),
		Body:      body,
		FetchedAt: time.UnixMilli(fetched),
	}, nil
}
