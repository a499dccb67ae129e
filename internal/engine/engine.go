// Package engine implements the clipboard ownership state machine: it owns
// the event loop, reconciles the observed selection with the history
// store, and guarantees that at all times either a foreign client owns the
// selection or the daemon re-serves the most recent entry.
//
// Realized as an Engine holding the wayland.Client transport connection,
// the bound Device, an OfferBuffer/SourceBuffer pair, the Store, and the
// retention Scheduler. The single-threaded cooperative loop a C daemon
// would build on poll() over a display fd, a signalfd, and a timerfd is
// realized here as a Go select over the transport's event channel, an
// os/signal channel, and the retention scheduler's timer channel.
package engine

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArtsyMacaw/kaprica/internal/classify"
	"github.com/ArtsyMacaw/kaprica/internal/clip"
	"github.com/ArtsyMacaw/kaprica/internal/retention"
	"github.com/ArtsyMacaw/kaprica/internal/store"
	"github.com/ArtsyMacaw/kaprica/internal/wayland"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"
)

// Timeout tiers for the offer drain pipeline.
const (
	timeoutShort   = 100 * time.Millisecond
	timeoutLong    = 2000 * time.Millisecond
	timeoutLongest = 8000 * time.Millisecond
)

const passwordHintMime = "x-kde-passwordManagerHint"

// bootstrapGrace is how long Run waits for any compositor-initiated
// bootstrap events (most notably an immediate selection() announcing the
// clipboard's current owner) before deciding between the LOADING and IDLE
// branches of startup reconciliation.
const bootstrapGrace = 50 * time.Millisecond

// Engine is the daemon's clipboard state machine.
type Engine struct {
	client    *wayland.Client
	device    *wayland.Device
	store     *store.Store
	retention *retention.Scheduler

	state     State
	offerBuf  *clip.OfferBuffer
	sourceBuf *clip.SourceBuffer

	servingID  int64 // id of the entry currently served, 0 if none
	wasServing bool  // sticky "we owned the selection before this handoff" flag
}

// Init acquires a transport connection for seatName, binds the
// data-control manager, creates the device, and returns an Engine ready
// for Run. It does not yet reconcile state; that happens at the start of
// Run, once the event channel is live.
func Init(seatName string, st *store.Store, sched *retention.Scheduler) (*Engine, error) {
	client, err := wayland.Connect(seatName)
	if err != nil {
		return nil, err
	}

	device, err := client.NewDevice()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Engine{
		client:    client,
		device:    device,
		store:     st,
		retention: sched,
		state:     StateIdle,
		offerBuf:  clip.NewOfferBuffer(),
		sourceBuf: clip.NewSourceBuffer(),
	}, nil
}

// Watch is a no-op beyond documentation: NewDevice already registered the
// device's event handler during Init, so data_offer/selection/finished
// events are already being delivered on the client's event channel by the
// time Run starts consuming it.
func (e *Engine) Watch() {}

// Close tears down the transport connection.
func (e *Engine) Close() {
	e.offerBuf.Clear()
	e.sourceBuf.Clear()
	e.client.Close()
}

// Run drives the daemon's single-threaded event loop until a signal, a
// fatal transport error, or device teardown ends it.
func (e *Engine) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	e.bootstrap()

	for {
		select {
		case ev, ok := <-e.client.Events():
			if !ok {
				return fmt.Errorf("engine: wayland event stream closed")
			}
			if err := e.handleEvent(ev); err != nil {
				return err
			}
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("engine: shutting down")
			return nil
		case <-e.retention.Timer():
			e.retention.Run(e.servingID)
			e.retention.Rearm()
		}
	}
}

// bootstrap gives the compositor a brief window to deliver its initial
// selection() announcement, then reconciles.
func (e *Engine) bootstrap() {
	select {
	case ev, ok := <-e.client.Events():
		if ok {
			if err := e.handleEvent(ev); err != nil {
				logger.Warn().Err(err).Msg("engine: bootstrap event handling failed")
			}
		}
	case <-time.After(bootstrapGrace):
	}
	if e.state == StateIdle {
		e.reconcile()
	}
}

// reconcile decides what the clipboard should do at startup or after the
// selection was cleared: if a foreign offer is already latched, drain it;
// else if the store is non-empty, load and re-serve the latest entry; else
// stay IDLE. reconcileAfterExpiry handles the equivalent decision after a
// cancelled source, where re-serving automatically is not allowed.
func (e *Engine) reconcile() {
	if e.offerBuf.Offer != nil {
		e.state = StateDraining
		if err := e.drainAndInsert(); err != nil {
			logger.Warn().Err(err).Msg("engine: reconcile drain failed")
		}
		return
	}

	total, err := e.store.GetTotalEntries()
	if err != nil {
		logger.Warn().Err(err).Msg("engine: reconcile count check failed")
		e.state = StateIdle
		return
	}
	if total == 0 {
		e.state = StateIdle
		return
	}
	if err := e.loadLatest(); err != nil {
		logger.Warn().Err(err).Msg("engine: reconcile load failed")
		e.state = StateIdle
	}
}

func (e *Engine) handleEvent(ev wayland.Event) error {
	switch v := ev.(type) {
	case wayland.DataOfferEvent:
		// Mime types accumulate on v.Offer as offer() events arrive; the
		// object becomes actionable once a selection() event names it.
		return nil

	case wayland.SelectionEvent:
		return e.onSelection(v)

	case wayland.SourceSendEvent:
		e.onSend(v)
		return nil

	case wayland.SourceCancelledEvent:
		e.onCancelled(v)
		return nil

	case wayland.FinishedEvent:
		return fmt.Errorf("engine: data control device finished, seat is gone")

	case wayland.ErrorEvent:
		return v.Err
	}
	return nil
}

func (e *Engine) onSelection(v wayland.SelectionEvent) error {
	if v.Kind == clip.SelectionPrimary {
		// Primary selection is recognized and logged, never drained or
		// served.
		if v.Offer != nil {
			logger.Info().Strs("mime_types", v.Offer.MimeTypes()).Msg("engine: primary selection changed (not tracked)")
			v.Offer.Destroy()
		}
		return nil
	}

	if v.Offer == nil {
		// Selection was cleared (the owning client went away or set a
		// null selection): nobody owns the clipboard, so re-serve the
		// latest stored entry if there is one.
		e.offerBuf.Clear()
		e.reconcile()
		return nil
	}

	e.state = StateDraining
	e.offerBuf.Clear()
	e.offerBuf.Offer = v.Offer
	e.offerBuf.SelectionKind = v.Kind
	return e.drainAndInsert()
}

// drainAndInsert runs the DRAINING -> INSERT -> SERVE-or-WAIT path: drain
// every advertised MIME type, commit the result to the store, then
// re-serve iff the engine was previously SERVING.
func (e *Engine) drainAndInsert() error {
	if !e.GetSelection() {
		e.offerBuf.Clear()
		e.state = StateIdle
		return nil
	}

	e.state = StateInsert

	if e.offerBuf.Password {
		logger.Info().Msg("engine: password-hinted content, skipping persistence")
		e.offerBuf.Clear()
		e.sourceBuf.Clear()
		e.state = StateIdle
		return nil
	}

	id, err := e.store.InsertEntry(e.sourceBuf)
	if err != nil {
		e.offerBuf.Clear()
		e.sourceBuf.Clear()
		e.state = StateIdle
		return err
	}
	e.offerBuf.Clear()

	if e.wasServing {
		return e.serve(id)
	}

	e.sourceBuf.Clear()
	e.state = StateIdle
	return nil
}

// loadLatest implements the LOADING state: read the most recent entry
// from the store and serve it.
func (e *Engine) loadLatest() error {
	e.state = StateLoading
	ids, err := e.store.GetLatestEntries(1, 0)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		e.state = StateIdle
		return nil
	}

	src, err := e.store.GetEntry(ids[0])
	if err != nil {
		return err
	}
	e.sourceBuf.Clear()
	e.sourceBuf = src
	return e.serve(ids[0])
}

func (e *Engine) serve(id int64) error {
	if err := e.SetSelection(); err != nil {
		e.state = StateIdle
		return err
	}
	e.servingID = id
	e.wasServing = true
	e.state = StateServing
	return nil
}

// GetSelection drains the pending OfferBuffer into a fully materialized
// SourceBuffer, returning false when no offer is present or nothing could
// be drained.
func (e *Engine) GetSelection() bool {
	if e.offerBuf.Offer == nil {
		return false
	}

	types := e.offerBuf.Offer.MimeTypes()
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		if !e.offerBuf.AddType(t) {
			logger.Warn().Str("mime", t).Int("max", clip.MaxMimeTypes).Msg("engine: too many mime types offered, dropping")
		}
		if t == passwordHintMime {
			e.offerBuf.Password = true
		}
	}

	for i := range e.offerBuf.Payloads {
		mimeType := e.offerBuf.Payloads[i].Type
		data, err := e.offerBuf.Offer.Receive(mimeType, timeoutShort, timeoutLong, timeoutLongest)
		if err != nil {
			e.offerBuf.Invalid[i] = true
			logger.Warn().Err(err).Str("mime", mimeType).Msg("engine: drain failed for mime type")
			continue
		}
		e.offerBuf.Payloads[i].Bytes = data
		e.offerBuf.Payloads[i].Length = uint32(len(data))
	}

	valid := e.offerBuf.ValidPayloads()
	if len(valid) == 0 {
		return false
	}

	e.sourceBuf.Clear()
	e.sourceBuf.Payloads = valid
	classify.GuessMimeTypes(e.sourceBuf)
	classify.GetThumbnail(e.sourceBuf)
	classify.GetSnippet(e.sourceBuf)
	e.sourceBuf.DataHash = classify.DataHash(e.sourceBuf)
	return true
}

// SetSelection constructs a fresh source object on the transport,
// advertises every MIME type held by the SourceBuffer, and installs it as
// the selection.
func (e *Engine) SetSelection() error {
	src := e.client.NewSource()
	src.AttachDevice(e.device)
	for _, p := range e.sourceBuf.Payloads {
		src.Offer(p.Type)
	}
	e.sourceBuf.Source = src
	src.Install(clip.SelectionClipboard)
	return nil
}

// ClearSelection revokes ownership on the transport and resets the
// SourceBuffer.
func (e *Engine) ClearSelection() {
	e.device.ClearSelection(clip.SelectionClipboard) //nolint:errcheck
	e.sourceBuf.Clear()
	e.servingID = 0
	e.wasServing = false
	e.state = StateIdle
}

func (e *Engine) onSend(v wayland.SourceSendEvent) {
	f := os.NewFile(uintptr(v.FD), "selection-send")
	defer f.Close()

	payload := e.sourceBuf.FindPayload(v.MimeType)
	if payload == nil {
		logger.Warn().Str("mime", v.MimeType).Msg("engine: send requested for unknown mime type")
		return
	}

	if err := clip.WriteFull(f, payload.Bytes); err != nil {
		logger.Warn().Err(err).Str("mime", v.MimeType).Msg("engine: send failed")
	}

	if e.sourceBuf.OfferOnce {
		e.ClearSelection()
	}
}

func (e *Engine) onCancelled(v wayland.SourceCancelledEvent) {
	e.sourceBuf.Expired = true
	e.state = StateExpiredOut
	v.Source.Destroy()
	e.servingID = 0
	e.reconcileAfterExpiry()
}

// reconcileAfterExpiry handles the EXPIRED-OUT transition: it only ever
// lands on DRAINING or IDLE, never straight back to SERVING. If a foreign
// offer has already latched (its data_offer/selection were processed
// ahead of our own source's cancelled event on the transport), drain it;
// otherwise go idle and wait for the SelectionEvent that announces the
// new owner, rather than re-grabbing the selection ourselves.
func (e *Engine) reconcileAfterExpiry() {
	if e.offerBuf.Offer != nil {
		e.state = StateDraining
		if err := e.drainAndInsert(); err != nil {
			logger.Warn().Err(err).Msg("engine: post-cancel drain failed")
		}
		return
	}
	e.state = StateIdle
}
