package cmd

import (
	"io"
	"os"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
	"github.com/ArtsyMacaw/kaprica/internal/wayland"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"

	"github.com/spf13/cobra"
)

var copySeat string
var copyPasteOnce bool

var copyCmd = &cobra.Command{
	Use:   "copy [text]",
	Short: "Set the clipboard selection from an argument or standard input",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data = []byte(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
			if err != nil {
				return errors.WrapWithMessage(errors.ExitCodeGeneral, "failed to read standard input", err)
			}
		}

		return runCopy(copySeat, data, copyPasteOnce)
	},
}

// runCopy installs data as the clipboard selection on a fresh data-control
// source, the same way wl-copy owns the selection: the process acts as a
// foreign client until kapricad (seeing the new selection) drains, stores,
// and re-serves it itself, at which point this source is cancelled and the
// process exits. With pasteOnce set, this process itself clears the
// selection right after the first successful send instead of waiting for
// kapricad to take over.
func runCopy(seat string, data []byte, pasteOnce bool) error {
	client, err := wayland.Connect(seat)
	if err != nil {
		return errors.TransportError(err)
	}
	defer client.Close()

	device, err := client.NewDevice()
	if err != nil {
		return errors.TransportError(err)
	}

	srcBuf := clip.NewSourceBuffer()
	srcBuf.OfferOnce = pasteOnce
	for _, mimeType := range []string{"text/plain;charset=utf-8", "text/plain", "UTF8_STRING", "TEXT", "STRING"} {
		srcBuf.Payloads = append(srcBuf.Payloads, clip.MimePayload{Type: mimeType, Bytes: data, Length: uint32(len(data))})
	}

	src := client.NewSource()
	src.AttachDevice(device)
	for _, p := range srcBuf.Payloads {
		src.Offer(p.Type)
	}
	srcBuf.Source = src
	src.Install(clip.SelectionClipboard)

	for ev := range client.Events() {
		switch v := ev.(type) {
		case wayland.SourceSendEvent:
			f := os.NewFile(uintptr(v.FD), "kapc-copy-send")
			payload := srcBuf.FindPayload(v.MimeType)
			sent := false
			if payload == nil {
				logger.Warn().Str("mime", v.MimeType).Msg("kapc: send requested for unknown mime type")
			} else if err := clip.WriteFull(f, payload.Bytes); err != nil {
				logger.Warn().Err(err).Msg("kapc: send failed")
			} else {
				sent = true
			}
			f.Close()

			if srcBuf.OfferOnce && sent {
				device.ClearSelection(clip.SelectionClipboard) //nolint:errcheck
			}
		case wayland.SourceCancelledEvent:
			v.Source.Destroy()
			return nil
		case wayland.ErrorEvent:
			return errors.TransportError(v.Err)
		}
	}
	return nil
}

func init() {
	copyCmd.Flags().StringVar(&copySeat, "seat", "", "Wayland seat name (accepted but not used: the first available seat is always bound)")
	copyCmd.Flags().BoolVarP(&copyPasteOnce, "paste-once", "o", false, "Clear the selection immediately after the first paste")
}
