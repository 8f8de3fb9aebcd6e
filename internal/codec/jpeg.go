package codec

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// jpegCodec кодирует и декодирует JPEG через стандартную библиотеку.
type jpegCodec struct{}

func (jpegCodec) Format() Format { return JPEG }

func (jpegCodec) Capabilities() Capabilities { return JPEG.Capabilities() }

// Decode декодирует JPEG и извлекает APP1/APP2 метаданные.
func (jpegCodec) Decode(data []byte) (*Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.New(imgerr.CorruptData, "decode jpeg", err)
	}
	icc, exif := readJPEGMetadata(data)
	return NewImage(img, JPEG, icc, exif), nil
}

// Encode кодирует JPEG с заданным качеством. Альфа-канал отбрасывается.
func (jpegCodec) Encode(img *Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, dropAlpha(img.Pixels), &jpeg.Options{Quality: clampQuality(opts.Quality, 1)})
	if err != nil {
		return nil, imgerr.New(imgerr.EncodeFailure, "encode jpeg", err)
	}
	return writeJPEGMetadata(buf.Bytes(), img.ICC, img.EXIF), nil
}

// dropAlpha копирует цветовые каналы в непрозрачный RGBA буфер.
func dropAlpha(src *image.NRGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// clampQuality приводит качество к диапазону [lo, 100].
func clampQuality(q, lo int) int {
	if q < lo {
		return lo
	}
	if q > 100 {
		return 100
	}
	return q
}
