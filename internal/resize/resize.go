// Package resize вычисляет целевые размеры и масштабирует изображения.
package resize

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
)

// Dimensions возвращает целевые размеры для исходника srcW x srcH.
// Без включённого resize возвращает исходные размеры.
//
// Режимы:
//   - обе стороны: точный размер;
//   - одна сторона: вторая по пропорции с округлением до ближайшего пикселя;
//   - scale: обе стороны умножаются на коэффициент;
//   - fit: вписать в рамку без увеличения.
func Dimensions(srcW, srcH int, r config.Resize) (int, int) {
	if !r.Enabled || srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}

	switch {
	case r.Scale > 0:
		return scaled(srcW, r.Scale), scaled(srcH, r.Scale)

	case r.Fit:
		ratio := 1.0
		if r.Width > 0 {
			ratio = math.Min(ratio, float64(r.Width)/float64(srcW))
		}
		if r.Height > 0 {
			ratio = math.Min(ratio, float64(r.Height)/float64(srcH))
		}
		if ratio >= 1 {
			return srcW, srcH
		}
		return scaled(srcW, ratio), scaled(srcH, ratio)

	case r.Width > 0 && r.Height > 0:
		return r.Width, r.Height

	case r.Width > 0:
		return r.Width, scaled(srcH, float64(r.Width)/float64(srcW))

	case r.Height > 0:
		return scaled(srcW, float64(r.Height)/float64(srcH)), r.Height
	}
	return srcW, srcH
}

func scaled(v int, factor float64) int {
	n := int(math.Round(float64(v) * factor))
	if n < 1 {
		return 1
	}
	return n
}

// Apply масштабирует изображение до w x h ядром Catmull-Rom.
// Если размеры совпадают, буфер не трогается и возвращается false.
func Apply(img *codec.Image, w, h int) bool {
	if img.Width() == w && img.Height() == h {
		return false
	}
	img.Pixels = Scale(img.Pixels, w, h)
	return true
}

// Scale возвращает новое изображение w x h.
// Альфа учитывается через премультипликацию: масштабирование идёт в RGBA.
func Scale(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return codec.ToNRGBA(dst)
}

// EstimateBytes - оценка памяти под декодированный и масштабированный буферы.
func EstimateBytes(srcW, srcH int, r config.Resize) int64 {
	w, h := Dimensions(srcW, srcH, r)
	return 4 * (int64(srcW)*int64(srcH) + int64(w)*int64(h))
}
