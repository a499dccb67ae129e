package wayland

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Fixed bootstrap object IDs; everything created after bind (offers,
// sources, the device) gets a dynamically allocated id.
const (
	idDisplay   uint32 = 1
	idRegistry  uint32 = 2
	idCallback1 uint32 = 3
	idSeat      uint32 = 4
	idDCManager uint32 = 5
)

// Opcodes used by this client. Only the subset the daemon needs is named.
const (
	// wl_display
	opDisplayGetRegistry uint16 = 1
	opDisplaySync        uint16 = 0
	// wl_registry
	opRegistryBind   uint16 = 0
	evRegistryGlobal uint16 = 0
	// wl_callback
	evCallbackDone uint16 = 0
	// zwlr_data_control_manager_v1
	opManagerCreateDataSource uint16 = 0
	opManagerGetDataDevice    uint16 = 1
	// zwlr_data_control_device_v1
	opDeviceSetSelection        uint16 = 0
	opDeviceSetPrimarySelection uint16 = 2
	evDeviceDataOffer           uint16 = 0
	evDeviceSelection           uint16 = 1
	evDeviceFinished            uint16 = 2
	evDevicePrimarySelection    uint16 = 3
	// zwlr_data_control_offer_v1
	opOfferReceive uint16 = 0
	opOfferDestroy uint16 = 1
	evOfferOffer   uint16 = 0
	// zwlr_data_control_source_v1
	opSourceOffer    uint16 = 0
	opSourceDestroy  uint16 = 1
	evSourceSend     uint16 = 0
	evSourceCancelled uint16 = 1
)

// Client is a connected wlr-data-control-v1 session: the seat and manager
// are bound once at Connect, NewDevice creates a zwlr_data_control_device_v1
// for the bound seat, and events from it are delivered on Events().
type Client struct {
	c      *conn
	seatID uint32
	mngID  uint32

	mu      sync.Mutex
	nextID  uint32
	objects map[uint32]func(opcode uint16, payload []byte, fd int)
	offers  map[uint32]*Offer

	deviceID uint32
	events   chan Event
	done     chan struct{}
}

// Connect dials $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY and binds the first
// advertised wl_seat and zwlr_data_control_manager_v1. seatName is not
// used: the first seat is bound whatever name is given. The data-control
// device is created separately by NewDevice. Any error returned is a
// transport-unavailable condition the caller should treat as fatal.
func Connect(seatName string) (*Client, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	if runtimeDir == "" {
		return nil, fmt.Errorf("wayland: XDG_RUNTIME_DIR not set")
	}

	sockPath := filepath.Join(runtimeDir, display)
	c, err := dial(sockPath)
	if err != nil {
		return nil, fmt.Errorf("wayland: connect %s: %w", sockPath, err)
	}

	cl := &Client{
		c:       c,
		nextID:  idDCManager + 1,
		objects: make(map[uint32]func(uint16, []byte, int)),
		offers:  make(map[uint32]*Offer),
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}

	if err := cl.bootstrap(seatName); err != nil {
		c.close()
		return nil, err
	}

	go cl.dispatchLoop()
	return cl, nil
}

func (cl *Client) allocID() uint32 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	id := cl.nextID
	cl.nextID++
	return id
}

func (cl *Client) register(id uint32, handler func(opcode uint16, payload []byte, fd int)) {
	cl.mu.Lock()
	cl.objects[id] = handler
	cl.mu.Unlock()
}

func (cl *Client) unregister(id uint32) {
	cl.mu.Lock()
	delete(cl.objects, id)
	cl.mu.Unlock()
}

func (cl *Client) registerOffer(o *Offer) {
	cl.mu.Lock()
	cl.offers[o.id] = o
	cl.mu.Unlock()
}

func (cl *Client) lookupOffer(id uint32) *Offer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.offers[id]
}

func (cl *Client) dropOffer(id uint32) {
	cl.mu.Lock()
	delete(cl.offers, id)
	cl.mu.Unlock()
}

// bootstrap performs the get_registry/sync roundtrip, binds wl_seat and
// zwlr_data_control_manager_v1, and creates the clipboard device.
func (cl *Client) bootstrap(seatName string) error {
	if err := cl.c.sendMsg(idDisplay, opDisplayGetRegistry, encodeUint32(idRegistry)); err != nil {
		return err
	}
	if err := cl.c.sendMsg(idDisplay, opDisplaySync, encodeUint32(idCallback1)); err != nil {
		return err
	}

	type global struct {
		name    uint32
		version uint32
	}
	var seat, mng global
	var seatFound, mngFound bool

	for {
		objectID, opcode, payload, fd, err := cl.c.readMsg()
		if err != nil {
			return err
		}
		if fd >= 0 {
			closeFD(fd)
		}

		if objectID == idRegistry && opcode == evRegistryGlobal {
			if len(payload) < 4 {
				continue
			}
			name, rest, err := decodeUint32(payload)
			if err != nil {
				continue
			}
			iface, rest, err := decodeString(rest)
			if err != nil {
				continue
			}
			version, _, err := decodeUint32(rest)
			if err != nil {
				continue
			}
			switch iface {
			case "wl_seat":
				if !seatFound {
					seat = global{name, version}
					seatFound = true
				}
			case "zwlr_data_control_manager_v1":
				mng = global{name, version}
				mngFound = true
			}
			continue
		}
		if objectID == idCallback1 && opcode == evCallbackDone {
			break
		}
	}

	if !seatFound {
		return fmt.Errorf("wayland: wl_seat not found")
	}
	if !mngFound {
		return fmt.Errorf("wayland: zwlr_data_control_manager_v1 not found (compositor lacks wlr-data-control support)")
	}
	_ = seatName // per-name seat selection needs wl_seat.name (v2); first seat is used otherwise

	if err := cl.c.sendMsg(idRegistry, opRegistryBind, concat(
		encodeUint32(seat.name), encodeString("wl_seat"), encodeUint32(1), encodeUint32(idSeat),
	)); err != nil {
		return err
	}
	if err := cl.c.sendMsg(idRegistry, opRegistryBind, concat(
		encodeUint32(mng.name), encodeString("zwlr_data_control_manager_v1"), encodeUint32(2), encodeUint32(idDCManager),
	)); err != nil {
		return err
	}

	cl.seatID = idSeat
	cl.mngID = idDCManager
	return nil
}

// NewDevice creates the zwlr_data_control_device_v1 for the bound seat and
// starts delivering its events on Client.Events().
func (cl *Client) NewDevice() (*Device, error) {
	deviceID := cl.allocID()
	if err := cl.c.sendMsg(cl.mngID, opManagerGetDataDevice, concat(encodeUint32(deviceID), encodeUint32(cl.seatID))); err != nil {
		return nil, err
	}
	d := &Device{client: cl, id: deviceID}
	cl.register(deviceID, d.handleEvent)
	cl.deviceID = deviceID
	return d, nil
}

// NewSource creates a zwlr_data_control_source_v1 object, not yet
// installed as any selection.
func (cl *Client) NewSource() *Source {
	id := cl.allocID()
	cl.c.sendMsg(cl.mngID, opManagerCreateDataSource, encodeUint32(id)) //nolint:errcheck
	s := &Source{client: cl, id: id}
	cl.register(id, s.handleEvent)
	return s
}

// Events returns the channel of protocol events. It is closed after a
// fatal transport error or Close.
func (cl *Client) Events() <-chan Event { return cl.events }

// Close tears down the connection and stops the dispatch goroutine.
func (cl *Client) Close() {
	select {
	case <-cl.done:
		return
	default:
		close(cl.done)
	}
	cl.c.close()
}

func (cl *Client) dispatchLoop() {
	defer close(cl.events)
	for {
		objectID, opcode, payload, fd, err := cl.c.readMsg()
		if err != nil {
			select {
			case cl.events <- ErrorEvent{Err: err}:
			case <-cl.done:
			}
			return
		}

		cl.mu.Lock()
		handler := cl.objects[objectID]
		cl.mu.Unlock()

		if handler == nil {
			if fd >= 0 {
				closeFD(fd)
			}
			continue
		}
		handler(opcode, payload, fd)

		select {
		case <-cl.done:
			return
		default:
		}
	}
}

func (cl *Client) emit(ev Event) {
	select {
	case cl.events <- ev:
	case <-cl.done:
	}
}
