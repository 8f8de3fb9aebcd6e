//go:build libheif

package codec

import (
	"fmt"
	"image"

	"github.com/strukturag/libheif-go"
)

// decodeHEIC декодирует HEIC через системный libheif (cgo).
func decodeHEIC(data []byte) (image.Image, error) {
	ctx, err := libheif.NewContext()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать контекст libheif: %w", err)
	}

	if err := ctx.ReadFromMemory(data); err != nil {
		return nil, fmt.Errorf("не удалось прочитать HEIC: %w", err)
	}

	handle, err := ctx.GetPrimaryImageHandle()
	if err != nil {
		return nil, fmt.Errorf("нет основного изображения: %w", err)
	}

	chroma := libheif.ChromaInterleavedRGB
	if handle.HasAlphaChannel() {
		chroma = libheif.ChromaInterleavedRGBA
	}
	img, err := handle.DecodeImage(libheif.ColorspaceRGB, chroma, nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось декодировать HEIC: %w", err)
	}

	return img.GetImage()
}
