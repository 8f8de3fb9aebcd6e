package codec

import (
	"image"
	"image/draw"
)

// ColorSpace - тег цветового пространства пиксельного буфера.
type ColorSpace uint8

const (
	// ColorSpaceSRGB - буфер в sRGB (профиль отсутствовал или уже нормализован).
	ColorSpaceSRGB ColorSpace = iota
	// ColorSpaceEmbedded - буфер в пространстве встроенного ICC профиля.
	ColorSpaceEmbedded
)

// String возвращает имя цветового пространства.
func (c ColorSpace) String() string {
	if c == ColorSpaceEmbedded {
		return "embedded-icc"
	}
	return "srgb"
}

// Image - декодированное изображение. Принадлежит одной задаче и
// меняется на месте по ходу конвейера.
type Image struct {
	// Pixels - 8-битный RGBA буфер без премультипликации.
	Pixels *image.NRGBA

	// Source - формат, из которого изображение декодировано.
	Source Format

	// ColorSpace - текущее цветовое пространство пикселей.
	ColorSpace ColorSpace

	// ICC - байты ICC профиля (встроенного при декодировании, каноничного sRGB перед кодированием).
	ICC []byte

	// EXIF - TIFF-блок EXIF без префикса "Exif\0\0".
	EXIF []byte
}

// NewImage оборачивает пиксели в Image. Если встроен ICC профиль,
// цветовое пространство помечается как встроенное.
func NewImage(src image.Image, format Format, icc, exif []byte) *Image {
	cs := ColorSpaceSRGB
	if len(icc) > 0 {
		cs = ColorSpaceEmbedded
	}
	return &Image{
		Pixels:     ToNRGBA(src),
		Source:     format,
		ColorSpace: cs,
		ICC:        icc,
		EXIF:       exif,
	}
}

// Width возвращает ширину в пикселях.
func (img *Image) Width() int {
	return img.Pixels.Bounds().Dx()
}

// Height возвращает высоту в пикселях.
func (img *Image) Height() int {
	return img.Pixels.Bounds().Dy()
}

// ToNRGBA приводит изображение к *image.NRGBA с началом координат в (0, 0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// IsOpaque проверяет, что все пиксели непрозрачны.
func IsOpaque(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xff {
				return false
			}
		}
	}
	return true
}
