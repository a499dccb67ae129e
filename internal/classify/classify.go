// Package classify implements the pure content-classification functions
// that turn raw MIME payloads into a publishable type list, a snippet, a
// thumbnail, and a content fingerprint. It has no dependency on the
// transport or the store.
package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
)

// Known bad explicit-text MIME prefixes: text-looking but not useful.
var badTextPrefixes = []string{
	"text/_moz_htmlinfo",
	"text/ico",
	"text/_moz_htmlcontext",
}

// canonicalTextTypes is the five-alias set published when the first
// payload of a source is determined to be textual.
var canonicalTextTypes = []string{
	"TEXT",
	"STRING",
	"UTF8_STRING",
	"text/plain",
	"text/plain;charset=utf-8",
}

// magic byte prefixes, in the priority order detection.c's libmagic call
// would apply them. Consulted left to right; first match wins.
var magicSignatures = []struct {
	prefix []byte
	mime   string
}{
	{[]byte("\x89PNG\r\n\x1a\n"), "image/png"},
	{[]byte("\xff\xd8\xff"), "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
	{[]byte("RIFF"), "image/webp"}, // narrowed below by WEBP marker check
	{[]byte("%PDF-"), "application/pdf"},
	{[]byte("PK\x03\x04"), "application/zip"},
	{[]byte("\x1f\x8b"), "application/gzip"},
	{[]byte("BZh"), "application/x-bzip2"},
	{[]byte("\x7fELF"), "application/x-executable"},
}

// FindExactType sniffs the MIME type of a byte buffer from magic byte
// prefixes, falling back to "text/plain" for valid UTF-8 and
// "application/octet-stream" otherwise. There is no Go binding for
// libmagic anywhere in the example pack this repo was grounded on, so
// this is a deliberate, small, table-driven standard-library port of the
// same priority rules detection.c's magic_buffer(MAGIC_MIME_TYPE) call
// exercises: sniff a fixed set of header prefixes, else classify by
// UTF-8 validity.
func FindExactType(data []byte) string {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	for _, sig := range magicSignatures {
		if sig.mime == "image/webp" {
			continue // handled above with the full RIFF/WEBP check
		}
		if len(data) >= len(sig.prefix) && string(data[:len(sig.prefix)]) == string(sig.prefix) {
			return sig.mime
		}
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if utf8.Valid(data) {
		return "text/plain"
	}
	return "application/octet-stream"
}

// IsTextByEncoding reports whether the sniffed textual encoding of data
// begins with "utf-" or "us-", mirroring detection.c's is_text(), which
// consults magic_buffer(MAGIC_MIME_ENCODING). Standard library UTF-8
// validation stands in for the encoding-name prefix check: valid UTF-8
// (including plain ASCII, a subset of UTF-8) is the only encoding family
// this system needs to recognize.
func IsTextByEncoding(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return utf8.Valid(data)
}

// IsUTF8Text reports whether mimeType is one of the two UTF-8 text aliases.
func IsUTF8Text(mimeType string) bool {
	return mimeType == "UTF8_STRING" || mimeType == "text/plain;charset=utf-8"
}

// IsExplicitText reports whether mimeType names a textual MIME type,
// excluding a known-bad set that looks textual but isn't useful.
func IsExplicitText(mimeType string) bool {
	for _, bad := range badTextPrefixes {
		if strings.HasPrefix(mimeType, bad) {
			return false
		}
	}
	if strings.HasPrefix(mimeType, "text/") || mimeType == "TEXT" || mimeType == "STRING" {
		return true
	}
	return false
}

// IsImage reports whether mimeType names an image MIME type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// GuessMimeTypes decides the publishable MIME type list for src, mutating
// src.Payloads in place. If the first payload is textual by any of the
// three predicates, the list is replaced with the five canonical text
// aliases, each payload sharing the same backing byte slice. Otherwise the
// single sniffed exact type is kept.
func GuessMimeTypes(src *clip.SourceBuffer) {
	if len(src.Payloads) == 0 {
		return
	}
	first := src.Payloads[0]
	exact := FindExactType(first.Bytes)

	if IsTextByEncoding(first.Bytes) || IsUTF8Text(exact) || IsExplicitText(exact) {
		aliased := make([]clip.MimePayload, len(canonicalTextTypes))
		for i, t := range canonicalTextTypes {
			aliased[i] = clip.MimePayload{
				Type:   t,
				Bytes:  first.Bytes, // shared backing array; public contract is byte equality
				Length: first.Length,
			}
		}
		src.Payloads = aliased
		return
	}

	src.Payloads = []clip.MimePayload{{Type: exact, Bytes: first.Bytes, Length: first.Length}}
}

// FindWriteType returns the index of the payload to prefer for
// snippet/write purposes: utf8-text, else explicit-text, else
// encoding-detected text, else any binary. Ties at the same priority are
// broken by the last matching index, mirroring find_write_type()'s plain
// overwrite-on-match loop.
func FindWriteType(src *clip.SourceBuffer) int {
	utf8Idx, explicitIdx, anyTextIdx, binaryIdx := -1, -1, -1, -1

	for i, p := range src.Payloads {
		switch {
		case IsUTF8Text(p.Type):
			utf8Idx = i
		case IsExplicitText(p.Type):
			explicitIdx = i
		case IsTextByEncoding(p.Bytes):
			anyTextIdx = i
		default:
			binaryIdx = i
		}
	}

	switch {
	case utf8Idx != -1:
		return utf8Idx
	case explicitIdx != -1:
		return explicitIdx
	case anyTextIdx != -1:
		return anyTextIdx
	default:
		return binaryIdx
	}
}

// GetSnippet computes an 80-byte (at most) single-line preview of src and
// assigns it to src.Snippet. If no textual payload exists, it falls back
// to a timestamp followed by the first MIME type.
func GetSnippet(src *clip.SourceBuffer) {
	idx := FindWriteType(src)
	if idx == -1 {
		src.Snippet = clip.Timestamp() + " " + "application/octet-stream"
		return
	}

	p := src.Payloads[idx]
	if !IsUTF8Text(p.Type) && !IsExplicitText(p.Type) && !IsTextByEncoding(p.Bytes) {
		src.Snippet = clip.Timestamp() + " " + src.Payloads[0].Type
		return
	}

	var b strings.Builder
	for i := 0; i < len(p.Bytes) && b.Len() < clip.SnippetSize-1; i++ {
		switch p.Bytes[i] {
		case '\n':
			b.WriteByte('\\')
		case 0:
			// skip embedded NULs
		default:
			b.WriteByte(p.Bytes[i])
		}
	}
	src.Snippet = b.String()
}

// hexDigestLen is the length DataHash keeps of the hex-encoded digest: the
// full SHA-256 width. The spec only requires equal content to hash equal,
// not a specific width.
const hexDigestLen = sha256.Size * 2

// DataHash computes a deterministic content fingerprint of src. It hashes
// the write-type payload's bytes, concatenated with the ordered list of
// published MIME types, so equal bytes published under the same type list
// hash equal, while the same bytes under a different type list give a
// different value. Text is always published under the same five canonical
// aliases, so equal text hashes equal. Standard library
// crypto/sha256 is used directly: no third-party non-cryptographic hasher
// is imported by domain code anywhere in the example pack (cespare/xxhash
// appears only as someone else's transitive dependency), so there is no
// ecosystem wrapper to ground a ported call on.
func DataHash(src *clip.SourceBuffer) string {
	idx := FindWriteType(src)
	h := sha256.New()
	if idx != -1 {
		h.Write(src.Payloads[idx].Bytes)
	}
	for _, p := range src.Payloads {
		h.Write([]byte(p.Type))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:hexDigestLen]
}
