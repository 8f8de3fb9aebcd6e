// Package metadata решает, какие метаданные попадают в результат,
// и применяет EXIF ориентацию к пикселям.
package metadata

import (
	"encoding/binary"
	"image"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/logger"
)

const orientationTag = 0x0112

// Orientation читает тег Orientation (1-8) из TIFF блока EXIF.
// При отсутствии тега или ошибке разбора возвращает 1.
func Orientation(rawExif []byte) int {
	if len(rawExif) == 0 {
		return 1
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 1
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		logger.Debugf("EXIF не разобран: %v", err)
		return 1
	}

	tags, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil || len(tags) == 0 {
		return 1
	}
	val, err := tags[0].Value()
	if err != nil {
		return 1
	}

	var o uint16
	switch v := val.(type) {
	case []uint16:
		if len(v) > 0 {
			o = v[0]
		}
	case uint16:
		o = v
	}
	if o < 1 || o > 8 {
		return 1
	}
	return int(o)
}

// Orient поворачивает и отражает пиксели по EXIF ориентации.
// HEIC декодер уже применяет трансформации контейнера, поэтому HEIC пропускается.
// Возвращает применённую ориентацию (1, если ничего не менялось).
func Orient(img *codec.Image) int {
	if img.Source == codec.HEIC {
		return 1
	}
	o := Orientation(img.EXIF)
	if o != 1 {
		img.Pixels = Transform(img.Pixels, o)
	}
	return o
}

// Transform возвращает изображение, приведённое к ориентации 1.
func Transform(src *image.NRGBA, orientation int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	// Для 5-8 стороны меняются местами.
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}

	var at func(x, y int) (int, int)
	switch orientation {
	case 2:
		at = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3:
		at = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4:
		at = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5:
		at = func(x, y int) (int, int) { return y, x }
	case 6:
		at = func(x, y int) (int, int) { return y, h - 1 - x }
	case 7:
		at = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case 8:
		at = func(x, y int) (int, int) { return w - 1 - y, x }
	default:
		return src
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := at(x, y)
			si := src.PixOffset(src.Rect.Min.X+sx, src.Rect.Min.Y+sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// PatchOrientation возвращает копию EXIF с Orientation = 1 в IFD0.
// Остальные байты не меняются. Второе значение сообщает, найден ли тег.
func PatchOrientation(rawExif []byte) ([]byte, bool) {
	if len(rawExif) < 8 {
		return rawExif, false
	}

	var bo binary.ByteOrder
	switch string(rawExif[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return rawExif, false
	}

	ifd := int(bo.Uint32(rawExif[4:]))
	if ifd < 8 || ifd+2 > len(rawExif) {
		return rawExif, false
	}
	count := int(bo.Uint16(rawExif[ifd:]))
	for i := 0; i < count; i++ {
		e := ifd + 2 + 12*i
		if e+12 > len(rawExif) {
			break
		}
		// Тип 3 (SHORT), одно значение хранится в поле значения.
		if bo.Uint16(rawExif[e:]) != orientationTag || bo.Uint16(rawExif[e+2:]) != 3 {
			continue
		}
		out := append([]byte(nil), rawExif...)
		bo.PutUint16(out[e+8:], 1)
		return out, true
	}
	return rawExif, false
}
