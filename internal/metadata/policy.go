package metadata

import (
	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/colorspace"
	"github.com/artemshloyda/imageconverter/internal/config"
)

// KeepEXIF сообщает, переносится ли EXIF для пары форматов.
// Только JPEG -> JPEG при политике preserve: семантика тегов между
// контейнерами не гарантируется.
func KeepEXIF(source, target codec.Format, policy config.MetadataPolicy) bool {
	return policy == config.MetadataPreserve && source == codec.JPEG && target == codec.JPEG
}

// Apply готовит метаданные к кодированию. Пиксели к этому моменту уже
// приведены к sRGB и ориентации 1, поэтому записывается каноничный sRGB
// профиль, а сохранённый EXIF получает Orientation = 1.
func Apply(img *codec.Image, target codec.Format, policy config.MetadataPolicy) {
	if KeepEXIF(img.Source, target, policy) && len(img.EXIF) > 0 {
		img.EXIF, _ = PatchOrientation(img.EXIF)
	} else {
		img.EXIF = nil
	}
	img.ICC = colorspace.SRGBProfile()
	img.ColorSpace = codec.ColorSpaceSRGB
}
