package wayland

import (
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
)

// ErrPayloadEmpty and ErrPayloadTooLarge are returned by Receive when the
// tiered drain algorithm invalidates a payload.
var (
	ErrPayloadEmpty    = errors.New("wayland: zero bytes drained within timeout budget")
	ErrPayloadTooLarge = errors.New("wayland: payload exceeds MAX_DATA_SIZE")
)

// Offer wraps zwlr_data_control_offer_v1: a foreign client's advertised
// selection, accumulating mime types as offer() events arrive and
// draining each one on request through a pipe.
type Offer struct {
	client *Client
	id     uint32

	mu    sync.Mutex
	types []string
}

func (o *Offer) handleEvent(opcode uint16, payload []byte, fd int) {
	if fd >= 0 {
		closeFD(fd)
	}
	if opcode != evOfferOffer {
		return
	}
	mimeType, _, err := decodeString(payload)
	if err != nil {
		return
	}
	o.mu.Lock()
	if len(o.types) < clip.MaxMimeTypes {
		o.types = append(o.types, mimeType)
	}
	o.mu.Unlock()
}

// MimeTypes returns the MIME types advertised so far, in arrival order.
func (o *Offer) MimeTypes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.types))
	copy(out, o.types)
	return out
}

// Receive drains one MIME type from the offer through a freshly-created
// pipe, implementing a tiered short/long/longest timeout algorithm.
// timeoutLong is used as the initial poll timeout for image/png and
// image/jpeg payloads; every other type starts with timeoutShort. After
// any non-empty read, the poll timeout switches to timeoutLongest to
// tolerate slow producers.
func (o *Offer) Receive(mimeType string, timeoutShort, timeoutLong, timeoutLongest time.Duration) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := o.client.c.sendMsgWithFD(o.id, opOfferReceive, encodeString(mimeType), int(w.Fd())); err != nil {
		w.Close()
		return nil, err
	}
	w.Close() // the write end belongs to the compositor's peer now

	readSize := pipeBufferSize(r)
	timeout := timeoutShort
	if mimeType == "image/png" || mimeType == "image/jpeg" {
		timeout = timeoutLong
	}

	buf := make([]byte, 0, readSize)
	gotAny := false
	for {
		if err := r.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		chunk := make([]byte, readSize)
		n, err := r.Read(chunk)
		if n > 0 {
			gotAny = true
			buf = append(buf, chunk[:n]...)
			if len(buf) > clip.MaxDataSize {
				return nil, ErrPayloadTooLarge
			}
		}
		if err != nil {
			if isTimeoutErr(err) {
				if !gotAny {
					return nil, ErrPayloadEmpty
				}
				break // longest-bound poll elapsed with no further data: done
			}
			break // EOF or other terminal read error ends the stream
		}
		if n == 0 {
			break
		}
		if n < readSize {
			break // fewer than the pipe's buffer size: payload complete
		}
		timeout = timeoutLongest
	}

	if !gotAny {
		return nil, ErrPayloadEmpty
	}
	return buf, nil
}

// Destroy releases the offer object. Safe to call more than once.
func (o *Offer) Destroy() {
	o.client.unregister(o.id)
	o.client.dropOffer(o.id)
	o.client.c.sendMsg(o.id, opOfferDestroy, nil) //nolint:errcheck
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// pipeBufferSize queries the kernel pipe capacity via F_GETPIPE_SZ,
// falling back to clip.ReadSize (64 KiB). This is both the read
// granularity and the initial buffer allocation.
func pipeBufferSize(r *os.File) int {
	sz, err := unix.FcntlInt(r.Fd(), unix.F_GETPIPE_SZ, 0)
	if err != nil || sz <= 0 {
		return clip.ReadSize
	}
	return sz
}
