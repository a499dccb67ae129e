package wayland

import "github.com/ArtsyMacaw/kaprica/internal/clip"

// Device wraps zwlr_data_control_device_v1: the per-seat object the
// engine watches for data_offer/selection/primary_selection/finished
// events and uses to install outgoing sources.
type Device struct {
	client *Client
	id     uint32
}

// handleEvent decodes events addressed to the device object and
// re-publishes them as wayland.Event values on the client's event channel.
func (d *Device) handleEvent(opcode uint16, payload []byte, fd int) {
	if fd >= 0 {
		closeFD(fd)
	}
	switch opcode {
	case evDeviceDataOffer:
		id, _, err := decodeUint32(payload)
		if err != nil {
			return
		}
		o := &Offer{client: d.client, id: id}
		d.client.register(id, o.handleEvent)
		d.client.registerOffer(o)
		d.client.emit(DataOfferEvent{Offer: o})

	case evDeviceSelection:
		d.emitSelection(payload, clip.SelectionClipboard)

	case evDevicePrimarySelection:
		d.emitSelection(payload, clip.SelectionPrimary)

	case evDeviceFinished:
		d.client.emit(FinishedEvent{})
	}
}

func (d *Device) emitSelection(payload []byte, kind clip.SelectionKind) {
	id, _, err := decodeUint32(payload)
	if err != nil || id == 0 {
		d.client.emit(SelectionEvent{Offer: nil, Kind: kind})
		return
	}
	d.client.emit(SelectionEvent{Offer: d.client.lookupOffer(id), Kind: kind})
}

// SetSelection installs source as the clipboard (or primary) selection.
func (d *Device) SetSelection(s *Source, kind clip.SelectionKind) error {
	op := opDeviceSetSelection
	if kind == clip.SelectionPrimary {
		op = opDeviceSetPrimarySelection
	}
	return d.client.c.sendMsg(d.id, op, encodeUint32(s.id))
}

// ClearSelection revokes ownership by installing a null source.
func (d *Device) ClearSelection(kind clip.SelectionKind) error {
	op := opDeviceSetSelection
	if kind == clip.SelectionPrimary {
		op = opDeviceSetPrimarySelection
	}
	return d.client.c.sendMsg(d.id, op, encodeUint32(0))
}
