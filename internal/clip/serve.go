package clip

import "io"

// FindPayload returns the payload matching mimeType, or nil if the
// SourceBuffer advertises no such type. Shared by every send handler that
// serves a SourceBuffer over a transport: the daemon's own re-serve path
// and the CLI's foreign-source copy path both look a requested MIME type
// up the same way.
func (s *SourceBuffer) FindPayload(mimeType string) *MimePayload {
	for i := range s.Payloads {
		if s.Payloads[i].Type == mimeType {
			return &s.Payloads[i]
		}
	}
	return nil
}

// WriteFull writes data to w in full, retrying partial writes until
// completion or a terminal error (including EPIPE from a consumer that
// closed its end early).
func WriteFull(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
