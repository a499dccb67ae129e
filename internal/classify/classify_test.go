package classify

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
)

func TestFindExactType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), "image/png"},
		{"jpeg", []byte("\xff\xd8\xffrest"), "image/jpeg"},
		{"gif87", []byte("GIF87arest"), "image/gif"},
		{"pdf", []byte("%PDF-1.4"), "application/pdf"},
		{"zip", []byte("PK\x03\x04rest"), "application/zip"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), []byte("VP8 ")...), "image/webp"},
		{"utf8 text", []byte("hello world"), "text/plain"},
		{"empty", []byte{}, "application/octet-stream"},
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindExactType(tt.data); got != tt.want {
				t.Errorf("FindExactType(%q) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestIsUTF8Text(t *testing.T) {
	if !IsUTF8Text("UTF8_STRING") {
		t.Error("UTF8_STRING should be utf8 text")
	}
	if !IsUTF8Text("text/plain;charset=utf-8") {
		t.Error("text/plain;charset=utf-8 should be utf8 text")
	}
	if IsUTF8Text("text/plain") {
		t.Error("text/plain should not be utf8 text")
	}
}

func TestIsExplicitText(t *testing.T) {
	if !IsExplicitText("text/plain") {
		t.Error("text/plain should be explicit text")
	}
	if !IsExplicitText("TEXT") {
		t.Error("TEXT should be explicit text")
	}
	if IsExplicitText("text/_moz_htmlinfo") {
		t.Error("text/_moz_htmlinfo should be excluded")
	}
	if IsExplicitText("image/png") {
		t.Error("image/png should not be explicit text")
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/png") {
		t.Error("image/png should be an image type")
	}
	if IsImage("text/plain") {
		t.Error("text/plain should not be an image type")
	}
}

func TestGuessMimeTypes_TextualFirstPayload(t *testing.T) {
	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{
		{Type: "text/plain", Bytes: []byte("hello"), Length: 5},
	}
	GuessMimeTypes(src)

	if len(src.Payloads) != 5 {
		t.Fatalf("expected 5 canonical text aliases, got %d", len(src.Payloads))
	}
	for _, p := range src.Payloads {
		if !bytes.Equal(p.Bytes, []byte("hello")) {
			t.Errorf("alias %q has unexpected bytes %q", p.Type, p.Bytes)
		}
	}
}

func TestGuessMimeTypes_BinaryFirstPayload(t *testing.T) {
	src := clip.NewSourceBuffer()
	png := []byte("\x89PNG\r\n\x1a\nrest")
	src.Payloads = []clip.MimePayload{
		{Type: "image/png", Bytes: png, Length: uint32(len(png))},
	}
	GuessMimeTypes(src)

	if len(src.Payloads) != 1 {
		t.Fatalf("expected single sniffed type, got %d", len(src.Payloads))
	}
	if src.Payloads[0].Type != "image/png" {
		t.Errorf("Type = %q, want image/png", src.Payloads[0].Type)
	}
}

func TestFindWriteType_Priority(t *testing.T) {
	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{
		{Type: "application/octet-stream", Bytes: []byte{0xff, 0xfe}},
		{Type: "text/plain", Bytes: []byte("plain")},
		{Type: "UTF8_STRING", Bytes: []byte("plain")},
	}
	idx := FindWriteType(src)
	if idx != 2 {
		t.Errorf("FindWriteType() = %d, want 2 (utf8 text wins)", idx)
	}
}

func TestGetSnippet_TextPayload(t *testing.T) {
	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{
		{Type: "text/plain", Bytes: []byte("line one\nline two\x00trailing")},
	}
	GetSnippet(src)
	// NUL bytes are skipped, not replaced, so "two" and "trailing" touch directly.
	want := "line one\\line twotrailing"
	if src.Snippet != want {
		t.Errorf("Snippet = %q, want %q", src.Snippet, want)
	}
}

func TestGetSnippet_BinaryFallsBackToTimestamp(t *testing.T) {
	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{
		{Type: "image/png", Bytes: []byte{0x89, 0x50, 0x4e, 0x47}},
	}
	GetSnippet(src)
	if src.Snippet == "" {
		t.Error("Snippet should not be empty for binary payload")
	}
}

func TestGetSnippet_TruncatesToSnippetSize(t *testing.T) {
	src := clip.NewSourceBuffer()
	long := bytes.Repeat([]byte("a"), 500)
	src.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: long}}
	GetSnippet(src)
	if len(src.Snippet) >= clip.SnippetSize {
		t.Errorf("Snippet length = %d, want < %d", len(src.Snippet), clip.SnippetSize)
	}
}

func TestDataHash_EqualForEqualContent(t *testing.T) {
	srcA := clip.NewSourceBuffer()
	srcA.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: []byte("same")}}
	srcB := clip.NewSourceBuffer()
	srcB.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: []byte("same")}}

	if DataHash(srcA) != DataHash(srcB) {
		t.Error("DataHash should be equal for identical content and types")
	}
}

func TestDataHash_DiffersForDifferentContent(t *testing.T) {
	srcA := clip.NewSourceBuffer()
	srcA.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: []byte("one")}}
	srcB := clip.NewSourceBuffer()
	srcB.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: []byte("two")}}

	if DataHash(srcA) == DataHash(srcB) {
		t.Error("DataHash should differ for different content")
	}
}

func TestGetThumbnail_ProducesJPEGForImagePayload(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode fixture jpeg: %v", err)
	}

	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{
		{Type: "image/jpeg", Bytes: buf.Bytes(), Length: uint32(buf.Len())},
	}
	GetThumbnail(src)

	if len(src.Thumbnail) == 0 {
		t.Fatal("expected non-empty thumbnail")
	}
	decoded, _, err := image.Decode(bytes.NewReader(src.Thumbnail))
	if err != nil {
		t.Fatalf("thumbnail did not decode as an image: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() > thumbnailWidth || bounds.Dy() > thumbnailHeight {
		t.Errorf("thumbnail size %dx%d exceeds %dx%d", bounds.Dx(), bounds.Dy(), thumbnailWidth, thumbnailHeight)
	}
}

func TestGetThumbnail_NoImagePayloadLeavesThumbnailEmpty(t *testing.T) {
	src := clip.NewSourceBuffer()
	src.Payloads = []clip.MimePayload{{Type: "text/plain", Bytes: []byte("no image here")}}
	GetThumbnail(src)
	if src.Thumbnail != nil {
		t.Error("Thumbnail should remain nil when no image payload is present")
	}
}
