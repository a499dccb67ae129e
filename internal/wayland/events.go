package wayland

import "github.com/ArtsyMacaw/kaprica/internal/clip"

// Event is the type delivered on Client.Events(). Concrete types are
// DataOfferEvent, SelectionEvent (whose Kind tells the clipboard and the
// primary selection apart), FinishedEvent, SourceSendEvent,
// SourceCancelledEvent, and ErrorEvent.
type Event interface{ isEvent() }

// DataOfferEvent announces a new offer object; its mime types arrive as
// subsequent per-offer offer() events, already folded into Offer.MimeTypes
// by the time Selection/PrimarySelection fires.
type DataOfferEvent struct {
	Offer *Offer
}

// SelectionEvent reports the device's current clipboard selection. A nil
// Offer means the selection was cleared.
type SelectionEvent struct {
	Offer *Offer
	Kind  clip.SelectionKind
}

// FinishedEvent reports that the device object (and therefore the seat) is
// gone; the daemon should tear down and exit.
type FinishedEvent struct{}

// SourceSendEvent is delivered when a peer requests a MIME type this
// daemon is currently offering as a selection source.
type SourceSendEvent struct {
	Source   *Source
	MimeType string
	FD       int
}

// SourceCancelledEvent is delivered when the compositor revokes a source
// previously installed via set_selection (another client claimed
// ownership).
type SourceCancelledEvent struct {
	Source *Source
}

// ErrorEvent wraps a fatal transport error; after this, Events() closes.
type ErrorEvent struct {
	Err error
}

func (DataOfferEvent) isEvent()        {}
func (SelectionEvent) isEvent()        {}
func (FinishedEvent) isEvent()         {}
func (SourceSendEvent) isEvent()       {}
func (SourceCancelledEvent) isEvent()  {}
func (ErrorEvent) isEvent()            {}
