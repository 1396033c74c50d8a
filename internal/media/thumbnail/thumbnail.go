// Package thumbnail derives the small JPEG shown on map markers.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	MaxEdge     = 300
	JPEGQuality = 85
	ContentType = "image/jpeg"
)

// Make decodes r and returns a JPEG that fits in MaxEdge x MaxEdge, keeping
// the aspect ratio. Images already inside the box are re-encoded as is.
func Make(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	thumb := resize.Thumbnail(MaxEdge, MaxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
