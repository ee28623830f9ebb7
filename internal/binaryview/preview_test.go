package binaryview

import (
	"strings"
	"testing"
)

func TestPreviewDumpsBytes(t *testing.T) {
	got := Preview([]byte{0x89, 0x50, 0x4e, 0x47}, 0)
	if !strings.Contains(got, "89 50 4e 47") || !strings.Contains(got, "|.PNG|") {
		t.Fatalf("unexpected dump %q", got)
	}
	if strings.Contains(got, "more bytes") {
		t.Fatalf("short input should not be truncated: %q", got)
	}
}

func TestPreviewTruncates(t *testing.T) {
	data := make([]byte, 40)
	got := Preview(data, 16)
	if !strings.HasSuffix(got, "… 24 more bytes\n") {
		t.Fatalf("missing truncation note: %q", got)
	}
	if strings.Count(got, "\n") != 2 {
		t.Fatalf("expected one dump line plus note, got %q", got)
	}
}

func TestPreviewEmpty(t *testing.T) {
	if got := Preview(nil, 0); got != "" {
		t.Fatalf("expected empty preview, got %q", got)
	}
}
