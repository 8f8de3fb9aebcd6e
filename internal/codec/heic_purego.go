//go:build !libheif

package codec

import (
	"bytes"
	"image"

	"github.com/gen2brain/heic"
)

// decodeHEIC декодирует HEIC через libheif, собранный в wasm.
// Сборка без cgo; с тегом libheif используется системная библиотека.
func decodeHEIC(data []byte) (image.Image, error) {
	return heic.Decode(bytes.NewReader(data))
}
