// Package clip holds the in-memory staging types for one incoming and one
// outgoing clipboard selection: MimePayload, OfferBuffer, and SourceBuffer.
package clip

import "time"

const (
	MaxMimeTypes = 25
	MaxDataSize  = 52_428_800 // 50 MiB
	SnippetSize  = 80
	ReadSize     = 65536 // fallback pipe buffer size
)

// SelectionKind distinguishes the clipboard selection from the primary
// selection. Primary selection offers are recognized and logged but never
// drained or served by the engine.
type SelectionKind int

const (
	SelectionUnset SelectionKind = iota
	SelectionClipboard
	SelectionPrimary
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionClipboard:
		return "selection"
	case SelectionPrimary:
		return "primary"
	default:
		return "unset"
	}
}

// MimePayload is one MIME-typed byte buffer, either offered by a foreign
// client or held by the daemon to serve.
type MimePayload struct {
	Type   string
	Bytes  []byte
	Length uint32
}

// OfferTransport is the subset of the Wayland transport an OfferBuffer
// needs to drain a foreign offer. Implemented by *wayland.Offer.
type OfferTransport interface {
	MimeTypes() []string
	Receive(mimeType string, timeoutShort, timeoutLong, timeoutLongest time.Duration) ([]byte, error)
	Destroy()
}

// OfferBuffer stages one incoming selection: the advertised MIME types, the
// payloads drained so far, and a per-slot validity flag.
type OfferBuffer struct {
	Payloads      []MimePayload
	Invalid       []bool
	Expired       bool
	Password      bool
	SelectionKind SelectionKind
	Offer         OfferTransport
}

// NewOfferBuffer returns an empty, freshly-initialized offer buffer, the Go
// equivalent of offer_init() in offer.c.
func NewOfferBuffer() *OfferBuffer {
	return &OfferBuffer{SelectionKind: SelectionUnset}
}

// Clear releases the transport handle and resets all fields, mirroring
// offer_clear(). Called whenever the transport delivers a new data_offer,
// and at shutdown.
func (o *OfferBuffer) Clear() {
	if o.Offer != nil {
		o.Offer.Destroy()
	}
	o.Payloads = nil
	o.Invalid = nil
	o.Expired = false
	o.Password = false
	o.SelectionKind = SelectionUnset
	o.Offer = nil
}

// AddType appends one advertised MIME type slot. A 26th+ type is dropped
// with the caller expected to log a warning.
func (o *OfferBuffer) AddType(mimeType string) bool {
	if len(o.Payloads) >= MaxMimeTypes {
		return false
	}
	o.Payloads = append(o.Payloads, MimePayload{Type: mimeType})
	o.Invalid = append(o.Invalid, false)
	return true
}

// ValidPayloads returns the payloads whose slot was not marked invalid
// during draining.
func (o *OfferBuffer) ValidPayloads() []MimePayload {
	valid := make([]MimePayload, 0, len(o.Payloads))
	for i, p := range o.Payloads {
		if i < len(o.Invalid) && o.Invalid[i] {
			continue
		}
		if p.Length == 0 {
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

// SourceTransport is the subset of the Wayland transport a SourceBuffer
// needs to advertise and serve an outgoing selection. Implemented by
// *wayland.Source.
type SourceTransport interface {
	Offer(mimeType string)
	Install(deviceSelection SelectionKind)
	Destroy()
}

// SourceBuffer stages one outgoing selection: the payloads the daemon will
// serve, their derived snippet/thumbnail/hash, and ownership-revocation
// state.
type SourceBuffer struct {
	Payloads     []MimePayload
	Snippet      string
	Thumbnail    []byte
	ThumbnailLen uint32
	DataHash     string
	OfferOnce    bool
	Expired      bool
	Source       SourceTransport
}

// NewSourceBuffer returns an empty source buffer, the Go equivalent of
// source_init().
func NewSourceBuffer() *SourceBuffer {
	return &SourceBuffer{}
}

// Clear releases the transport handle and resets all fields, mirroring
// source_clear().
func (s *SourceBuffer) Clear() {
	if s.Source != nil {
		s.Source.Destroy()
	}
	s.Payloads = nil
	s.Snippet = ""
	s.Thumbnail = nil
	s.ThumbnailLen = 0
	s.DataHash = ""
	s.OfferOnce = false
	s.Expired = false
	s.Source = nil
}

// Timestamp returns the "asctime-like" snippet fallback used when no
// textual payload exists. Go's RFC1123 is used in place of C's asctime();
// any readable timestamp satisfies the fallback, not a specific format.
func Timestamp() string {
	return time.Now().Format(time.RFC1123)
}
