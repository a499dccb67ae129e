package wayland

import "github.com/ArtsyMacaw/kaprica/internal/clip"

// Source wraps zwlr_data_control_source_v1: an outgoing selection this
// daemon advertises. Installing it on a Device's selection makes the
// compositor route send()/cancelled() events here.
type Source struct {
	client *Client
	id     uint32
	device *Device
}

func (s *Source) handleEvent(opcode uint16, payload []byte, fd int) {
	switch opcode {
	case evSourceSend:
		mimeType, _, err := decodeString(payload)
		if err != nil {
			closeFD(fd)
			return
		}
		s.client.emit(SourceSendEvent{Source: s, MimeType: mimeType, FD: fd})
	case evSourceCancelled:
		if fd >= 0 {
			closeFD(fd)
		}
		s.client.emit(SourceCancelledEvent{Source: s})
	default:
		closeFD(fd)
	}
}

// Offer advertises one MIME type this source can produce, preserving call
// order.
func (s *Source) Offer(mimeType string) {
	s.client.c.sendMsg(s.id, opSourceOffer, encodeString(mimeType)) //nolint:errcheck
}

// Install sets this source as the device's current selection (or primary
// selection).
func (s *Source) Install(kind clip.SelectionKind) {
	if s.device == nil {
		return
	}
	s.device.SetSelection(s, kind) //nolint:errcheck
}

// AttachDevice binds the device this source will be installed on; called
// once by the engine after NewSource.
func (s *Source) AttachDevice(d *Device) { s.device = d }

// Destroy releases the source object.
func (s *Source) Destroy() {
	s.client.unregister(s.id)
	s.client.c.sendMsg(s.id, opSourceDestroy, nil) //nolint:errcheck
}
