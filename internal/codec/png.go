package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// pngCodec кодирует и декодирует PNG через стандартную библиотеку.
type pngCodec struct{}

func (pngCodec) Format() Format { return PNG }

func (pngCodec) Capabilities() Capabilities { return PNG.Capabilities() }

// Decode декодирует PNG вместе с iCCP и eXIf.
func (pngCodec) Decode(data []byte) (*Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.New(imgerr.CorruptData, "decode png", err)
	}
	icc, exif := readPNGMetadata(data)
	return NewImage(img, PNG, icc, exif), nil
}

// Encode кодирует PNG. Качество игнорируется; пиксели уже в sRGB,
// поэтому вместо байтов профиля пишется чанк sRGB.
func (pngCodec) Encode(img *Image, opts EncodeOptions) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	var src image.Image = img.Pixels
	if opts.OptimizePNG {
		enc.CompressionLevel = png.BestCompression
		src = reduceColors(img.Pixels)
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, src); err != nil {
		return nil, imgerr.New(imgerr.EncodeFailure, "encode png", err)
	}
	return writePNGMetadata(buf.Bytes(), img.EXIF), nil
}

// reduceColors подбирает представление без потерь: оттенки серого для
// непрозрачных серых изображений, иначе палитра, если цветов не больше 256.
// Непрозрачные RGBA изображения кодировщик сам пишет без альфа-канала.
func reduceColors(src *image.NRGBA) image.Image {
	b := src.Bounds()
	index := make(map[color.NRGBA]uint8, 256)
	palette := make(color.Palette, 0, 256)
	paletteOK := true
	gray := true

	for y := b.Min.Y; y < b.Max.Y && (paletteOK || gray); y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if gray && (c.A != 0xff || c.R != c.G || c.G != c.B) {
				gray = false
			}
			if !paletteOK {
				continue
			}
			if _, ok := index[c]; ok {
				continue
			}
			if len(palette) == 256 {
				paletteOK = false
				continue
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}

	switch {
	case gray:
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.SetGray(x, y, color.Gray{Y: src.NRGBAAt(x, y).R})
			}
		}
		return dst
	case paletteOK:
		dst := image.NewPaletted(b, palette)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.SetColorIndex(x, y, index[src.NRGBAAt(x, y)])
			}
		}
		return dst
	}
	return src
}
