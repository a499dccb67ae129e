package classify

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	_ "image/png" // register PNG decoder alongside the explicit gif import above
	"sort"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/nfnt/resize"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"
)

const (
	thumbnailWidth  = 320
	thumbnailHeight = 100
)

type lengthType struct {
	length int
	index  int
}

// GetThumbnail finds the largest image payload in src, decodes it, and
// stores a 320x100 fit-contain JPEG re-encode in src.Thumbnail /
// src.ThumbnailLen. If no image payload is present, or the decoder
// rejects it, the thumbnail is left empty (ThumbnailFailed is logged at
// Warn and storage proceeds without one).
func GetThumbnail(src *clip.SourceBuffer) {
	order := make([]lengthType, len(src.Payloads))
	for i, p := range src.Payloads {
		order[i] = lengthType{length: int(p.Length), index: i}
	}
	sort.Slice(order, func(a, b int) bool { return order[a].length > order[b].length })

	imgIdx := -1
	for _, lt := range order {
		if IsImage(src.Payloads[lt.index].Type) {
			imgIdx = lt.index
			break
		}
	}
	if imgIdx == -1 {
		return
	}

	payload := src.Payloads[imgIdx]
	img, _, err := decodeImage(payload.Bytes)
	if err != nil {
		logger.Warn().Err(err).Str("mime", payload.Type).Msg("thumbnail decode failed")
		return
	}

	thumb := resize.Thumbnail(thumbnailWidth, thumbnailHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		logger.Warn().Err(err).Msg("thumbnail jpeg encode failed")
		return
	}

	src.Thumbnail = buf.Bytes()
	src.ThumbnailLen = uint32(buf.Len())
}

// decodeImage tries the standard registry (png/jpeg/gif, registered by this
// file's imports) first, then the two formats with no stdlib decoder:
// bmp and webp, both reached through golang.org/x/image, the same
// dependency aymanbagabas-go-nativeclipboard, cogentcore-core, and
// helixml-helix all carry for this exact purpose.
func decodeImage(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}
	if img, err := bmp.Decode(bytes.NewReader(data)); err == nil {
		return img, "bmp", nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	// retry gif explicitly in case the generic decoder above rejected an
	// animated gif's first frame handling
	if img, err := gif.Decode(bytes.NewReader(data)); err == nil {
		return img, "gif", nil
	}
	return nil, "", errUnsupportedImage
}

var errUnsupportedImage = imageDecodeError("unsupported or corrupt image payload")

type imageDecodeError string

func (e imageDecodeError) Error() string { return string(e) }
