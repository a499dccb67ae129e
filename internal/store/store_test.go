package store

import (
	"path/filepath"
	"testing"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func bufferWith(snippet, hash string, mimeType string, data []byte) *clip.SourceBuffer {
	src := clip.NewSourceBuffer()
	src.Snippet = snippet
	src.DataHash = hash
	src.Payloads = []clip.MimePayload{{Type: mimeType, Bytes: data, Length: uint32(len(data))}}
	return src
}

func TestInsertAndGetEntry_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	src := bufferWith("hello", "hash-1", "text/plain", []byte("hello world"))
	id, err := s.InsertEntry(src)
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if id == 0 {
		t.Fatal("InsertEntry() returned id 0")
	}

	got, err := s.GetEntry(id)
	if err != nil {
		t.Fatalf("GetEntry() returned error: %v", err)
	}
	if got.Snippet != "hello" {
		t.Errorf("Snippet = %q, want %q", got.Snippet, "hello")
	}
	if len(got.Payloads) != 1 || string(got.Payloads[0].Bytes) != "hello world" {
		t.Errorf("Payloads = %+v, want one payload with bytes %q", got.Payloads, "hello world")
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetEntry(999); err == nil {
		t.Error("GetEntry() expected error for missing id, got nil")
	}
}

func TestGetTotalEntries(t *testing.T) {
	s := openTestStore(t)

	total, err := s.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 0 {
		t.Fatalf("GetTotalEntries() = %d, want 0", total)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("x"))); err != nil {
			t.Fatalf("InsertEntry() returned error: %v", err)
		}
	}

	total, err = s.GetTotalEntries()
	if err != nil {
		t.Fatalf("GetTotalEntries() returned error: %v", err)
	}
	if total != 3 {
		t.Errorf("GetTotalEntries() = %d, want 3", total)
	}
}

func TestDeleteDuplicateEntries_KeepsNewestPerHash(t *testing.T) {
	s := openTestStore(t)

	idOld, err := s.InsertEntry(bufferWith("old", "dup-hash", "text/plain", []byte("same")))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	idNew, err := s.InsertEntry(bufferWith("new", "dup-hash", "text/plain", []byte("same")))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	deleted, err := s.DeleteDuplicateEntries()
	if err != nil {
		t.Fatalf("DeleteDuplicateEntries() returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("DeleteDuplicateEntries() deleted %d rows, want 1", deleted)
	}

	if _, err := s.GetEntry(idOld); err == nil {
		t.Error("older duplicate should have been deleted")
	}
	if _, err := s.GetEntry(idNew); err != nil {
		t.Errorf("newer duplicate should survive: %v", err)
	}

	// idempotent: a second pass deletes nothing further.
	deleted, err = s.DeleteDuplicateEntries()
	if err != nil {
		t.Fatalf("DeleteDuplicateEntries() second pass returned error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second DeleteDuplicateEntries() pass deleted %d rows, want 0", deleted)
	}
}

func TestDeleteLastEntriesExcluding_NeverDeletesServedEntry(t *testing.T) {
	s := openTestStore(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("x")))
		if err != nil {
			t.Fatalf("InsertEntry() returned error: %v", err)
		}
		ids = append(ids, id)
	}
	servedID := ids[0] // the oldest entry; ordinarily first in line for the count cap

	deleted, err := s.DeleteLastEntriesExcluding(servedID, 3)
	if err != nil {
		t.Fatalf("DeleteLastEntriesExcluding() returned error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("DeleteLastEntriesExcluding() deleted %d rows, want 2", deleted)
	}
	if _, err := s.GetEntry(servedID); err != nil {
		t.Errorf("served entry should survive retention: %v", err)
	}
}

func TestDeleteLargestEntriesExcluding_NeverDeletesServedEntry(t *testing.T) {
	s := openTestStore(t)

	big := make([]byte, 4096)
	small := []byte("x")

	servedID, err := s.InsertEntry(bufferWith("big", "h1", "application/octet-stream", big))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	otherID, err := s.InsertEntry(bufferWith("small", "h2", "text/plain", small))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	deleted, err := s.DeleteLargestEntriesExcluding(servedID, 2)
	if err != nil {
		t.Fatalf("DeleteLargestEntriesExcluding() returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("DeleteLargestEntriesExcluding() deleted %d rows, want 1", deleted)
	}
	if _, err := s.GetEntry(servedID); err != nil {
		t.Errorf("served (largest) entry should survive: %v", err)
	}
	if _, err := s.GetEntry(otherID); err == nil {
		t.Error("non-served entry should have been deleted")
	}
}

func TestFindMatchingEntries_Content(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("find me here")))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if _, err := s.InsertEntry(bufferWith("other", "h2", "text/plain", []byte("nothing relevant"))); err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	ids, err := s.FindMatchingEntries(SearchContent, "find me", 10)
	if err != nil {
		t.Fatalf("FindMatchingEntries() returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("FindMatchingEntries() = %v, want [%d]", ids, id)
	}
}

func TestFindMatchingEntries_MimeType(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertEntry(bufferWith("snip", "h", "image/png", []byte{0x89, 0x50}))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if _, err := s.InsertEntry(bufferWith("other", "h2", "text/plain", []byte("text"))); err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	ids, err := s.FindMatchingEntries(SearchMimeType, "image/", 10)
	if err != nil {
		t.Fatalf("FindMatchingEntries() returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("FindMatchingEntries() = %v, want [%d]", ids, id)
	}
}

func TestFindMatchingEntries_Glob(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("report-2026-final.txt")))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if _, err := s.InsertEntry(bufferWith("other", "h2", "text/plain", []byte("unrelated"))); err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	ids, err := s.FindMatchingEntries(SearchGlob, "*final*", 10)
	if err != nil {
		t.Fatalf("FindMatchingEntries() returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("FindMatchingEntries() = %v, want [%d]", ids, id)
	}
}

func TestGetLatestEntries_Ordering(t *testing.T) {
	s := openTestStore(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("x")))
		if err != nil {
			t.Fatalf("InsertEntry() returned error: %v", err)
		}
		ids = append(ids, id)
	}

	latest, err := s.GetLatestEntries(1, 0)
	if err != nil {
		t.Fatalf("GetLatestEntries() returned error: %v", err)
	}
	if len(latest) != 1 || latest[0] != ids[len(ids)-1] {
		t.Errorf("GetLatestEntries(1,0) = %v, want [%d]", latest, ids[len(ids)-1])
	}
}

func TestDeleteEntry(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertEntry(bufferWith("snip", "h", "text/plain", []byte("x")))
	if err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if err := s.DeleteEntry(id); err != nil {
		t.Fatalf("DeleteEntry() returned error: %v", err)
	}
	if _, err := s.GetEntry(id); err == nil {
		t.Error("GetEntry() expected error after delete, got nil")
	}
}

func TestGetSize(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.InsertEntry(bufferWith("snip", "h1", "text/plain", []byte("12345"))); err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}
	if _, err := s.InsertEntry(bufferWith("snip2", "h2", "text/plain", []byte("1234567890"))); err != nil {
		t.Fatalf("InsertEntry() returned error: %v", err)
	}

	size, err := s.GetSize()
	if err != nil {
		t.Fatalf("GetSize() returned error: %v", err)
	}
	if size != 15 {
		t.Errorf("GetSize() = %d, want 15", size)
	}
}
