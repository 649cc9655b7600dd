package parser

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func readUTF8(t *testing.T, input []byte, contentType string) (string, string) {
	t.Helper()
	reader, enc, err := NewUTF8Reader(bytes.NewReader(input), contentType)
	if err != nil {
		t.Fatalf("NewUTF8Reader failed: %v", err)
	}
	output, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("Failed to read from UTF-8 reader: %v", err)
	}
	return string(output), enc
}

func TestNewUTF8Reader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       []byte
		contentType string
		want        string
		wantEnc     string
	}{
		{
			name:    "utf-8 passes through",
			input:   []byte(`<html><head><meta charset="utf-8"></head><body>Árvíztűrő tükörfúrógép ☺</body></html>`),
			want:    "Árvíztűrő tükörfúrógép ☺",
			wantEnc: "utf-8",
		},
		{
			name:    "iso-8859-1 meta",
			input:   []byte(`<html><head><meta charset="ISO-8859-1"></head><body>Caf` + "\xe9" + `</body></html>`),
			want:    "Café",
			wantEnc: "windows-1252",
		},
		{
			name:    "windows-1252 meta",
			input:   []byte(`<html><head><meta charset="windows-1252"></head><body>Test` + "\x99" + `</body></html>`),
			want:    "Test™",
			wantEnc: "windows-1252",
		},
		{
			name:    "http-equiv meta",
			input:   []byte(`<html><head><meta http-equiv="Content-Type" content="text/html; charset=ISO-8859-2"></head><body>` + "\xb3\xf3d\xbc" + `</body></html>`),
			want:    "łódź",
			wantEnc: "iso-8859-2",
		},
		{
			name:        "content type header wins over heuristics",
			input:       []byte(`<html><body>Caf` + "\xe9" + `</body></html>`),
			contentType: "text/html; charset=iso-8859-1",
			want:        "Café",
			wantEnc:     "windows-1252",
		},
		{
			name:    "undeclared utf-8 beyond the sniff window",
			input:   []byte("<html><body>" + strings.Repeat("a", 2048) + " Amélie</body></html>"),
			want:    "Amélie",
			wantEnc: "utf-8",
		},
		{
			name:    "byte order mark is dropped",
			input:   []byte("\xef\xbb\xbf<html><body>Hello</body></html>"),
			want:    "<html><body>Hello",
			wantEnc: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, enc := readUTF8(t, tt.input, tt.contentType)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q in output, got %q", tt.want, got)
			}
			if enc != tt.wantEnc {
				t.Errorf("Expected encoding %q, got %q", tt.wantEnc, enc)
			}
		})
	}
}

func TestNewUTF8Reader_ASCIIUnchanged(t *testing.T) {
	t.Parallel()

	input := []byte("<html><body>Hello World</body></html>")
	got, _ := readUTF8(t, input, "")
	if got != string(input) {
		t.Errorf("Expected ASCII content unchanged, got %q", got)
	}
}
