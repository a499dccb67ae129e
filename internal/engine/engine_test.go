package engine

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
	"github.com/ArtsyMacaw/kaprica/internal/store"
)

// fakeOffer implements clip.OfferTransport for tests that exercise the
// drain pipeline without a live Wayland connection.
type fakeOffer struct {
	types    []string
	payloads map[string][]byte
	errs     map[string]error

	destroyed bool
}

func (f *fakeOffer) MimeTypes() []string { return f.types }

func (f *fakeOffer) Receive(mimeType string, _, _, _ time.Duration) ([]byte, error) {
	if err, ok := f.errs[mimeType]; ok {
		return nil, err
	}
	return f.payloads[mimeType], nil
}

func (f *fakeOffer) Destroy() { f.destroyed = true }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open() returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Engine{
		store:     s,
		state:     StateIdle,
		offerBuf:  clip.NewOfferBuffer(),
		sourceBuf: clip.NewSourceBuffer(),
	}
}

func TestGetSelection_DrainsTextualOffer(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types:    []string{"text/plain"},
		payloads: map[string][]byte{"text/plain": []byte("hello world")},
	}

	if !e.GetSelection() {
		t.Fatal("GetSelection() = false, want true")
	}
	if len(e.sourceBuf.Payloads) != 5 {
		t.Errorf("expected 5 canonical text aliases, got %d", len(e.sourceBuf.Payloads))
	}
	if e.sourceBuf.Snippet != "hello world" {
		t.Errorf("Snippet = %q, want %q", e.sourceBuf.Snippet, "hello world")
	}
	if e.sourceBuf.DataHash == "" {
		t.Error("DataHash should not be empty")
	}
}

func TestGetSelection_NoOfferReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	if e.GetSelection() {
		t.Error("GetSelection() with no pending offer should return false")
	}
}

func TestGetSelection_AllTypesFailToDrainReturnsFalse(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types: []string{"text/plain"},
		errs:  map[string]error{"text/plain": errors.New("timed out")},
	}

	if e.GetSelection() {
		t.Error("GetSelection() should return false when every type fails to drain")
	}
	if !e.offerBuf.Invalid[0] {
		t.Error("failed type should be marked invalid")
	}
}

func TestGetSelection_PasswordHintSetsFlag(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types: []string{"text/plain", passwordHintMime},
		payloads: map[string][]byte{
			"text/plain":     []byte("secret"),
			passwordHintMime: []byte("1"),
		},
	}

	if !e.GetSelection() {
		t.Fatal("GetSelection() = false, want true")
	}
	if !e.offerBuf.Password {
		t.Error("Password flag should be set when x-kde-passwordManagerHint is offered")
	}
}

func TestDrainAndInsert_PersistsWhenNotPreviouslyServing(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types:    []string{"text/plain"},
		payloads: map[string][]byte{"text/plain": []byte("persist me")},
	}
	e.wasServing = false

	if err := e.drainAndInsert(); err != nil {
		t.Fatalf("drainAndInsert() returned error: %v", err)
	}

	total, err := e.store.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 1 {
		t.Errorf("GetTotalEntries() = %d, want 1", total)
	}
	if e.state != StateIdle {
		t.Errorf("state = %v, want %v (foreign client keeps ownership)", e.state, StateIdle)
	}
	if e.offerBuf.Offer != nil {
		t.Error("offerBuf should be cleared after drainAndInsert")
	}
}

func TestDrainAndInsert_SkipsPersistenceForPasswordHint(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types: []string{"text/plain", passwordHintMime},
		payloads: map[string][]byte{
			"text/plain":     []byte("secret"),
			passwordHintMime: []byte("1"),
		},
	}

	if err := e.drainAndInsert(); err != nil {
		t.Fatalf("drainAndInsert() returned error: %v", err)
	}

	total, err := e.store.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 0 {
		t.Errorf("GetTotalEntries() = %d, want 0 (password-hinted content must not persist)", total)
	}
	if e.state != StateIdle {
		t.Errorf("state = %v, want %v", e.state, StateIdle)
	}
}

func TestDrainAndInsert_NoValidPayloadsGoesIdle(t *testing.T) {
	e := newTestEngine(t)
	e.offerBuf.Offer = &fakeOffer{
		types: []string{"text/plain"},
		errs:  map[string]error{"text/plain": errors.New("drain failed")},
	}

	if err := e.drainAndInsert(); err != nil {
		t.Fatalf("drainAndInsert() returned error: %v", err)
	}
	if e.state != StateIdle {
		t.Errorf("state = %v, want %v", e.state, StateIdle)
	}
	total, err := e.store.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 0 {
		t.Error("nothing should be persisted when draining fails entirely")
	}
}

func TestReconcileAfterExpiry_GoesIdleWithNoLatchedOffer(t *testing.T) {
	e := newTestEngine(t)
	e.state = StateExpiredOut

	e.reconcileAfterExpiry()

	if e.state != StateIdle {
		t.Errorf("state = %v, want %v (nothing latched yet, must not re-serve)", e.state, StateIdle)
	}
}

func TestReconcileAfterExpiry_DrainsAlreadyLatchedOffer(t *testing.T) {
	e := newTestEngine(t)
	e.state = StateExpiredOut
	e.offerBuf.Offer = &fakeOffer{
		types:    []string{"text/plain"},
		payloads: map[string][]byte{"text/plain": []byte("new owner's data")},
	}

	e.reconcileAfterExpiry()

	total, err := e.store.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 1 {
		t.Errorf("GetTotalEntries() = %d, want 1 (already-latched foreign offer should be drained, not discarded)", total)
	}
	if e.state != StateIdle {
		t.Errorf("state = %v, want %v", e.state, StateIdle)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:       "idle",
		StateDraining:   "draining",
		StateInsert:     "insert",
		StateLoading:    "loading",
		StateServing:    "serving",
		StateExpiredOut: "expired-out",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
