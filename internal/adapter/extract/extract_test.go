package extract

import (
	"errors"
	"testing"

	"github.com/docuchat/docuchat/internal/port"
)

func TestText_PlainUTF8(t *testing.T) {
	got, err := Text("notes.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestText_PlainLatin1Fallback(t *testing.T) {
	// 0xE9 is 'é' in Latin-1 but invalid standalone UTF-8
	got, err := Text("notes.txt", []byte{'c', 'a', 'f', 0xE9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "café" {
		t.Fatalf("expected %q, got %q", "café", got)
	}
}

func TestText_UnsupportedExtension(t *testing.T) {
	_, err := Text("malware.exe", []byte("x"))
	if !errors.Is(err, port.ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"doc.txt":    true,
		"doc.PDF":    true,
		"doc.docx":   false,
		"no-ext":     false,
		"archive.gz": false,
	}
	for name, want := range cases {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}
