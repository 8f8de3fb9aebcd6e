package codec

import (
	"bytes"

	"github.com/gen2brain/webp"
	xwebp "golang.org/x/image/webp"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// webpMethod - компромисс скорость/размер libwebp (0 быстро, 6 медленно).
const webpMethod = 4

// webpCodec декодирует WebP через x/image и кодирует через libwebp (wasm).
type webpCodec struct{}

func (webpCodec) Format() Format { return WebP }

func (webpCodec) Capabilities() Capabilities { return WebP.Capabilities() }

// Decode декодирует WebP и извлекает чанки ICCP/EXIF.
func (webpCodec) Decode(data []byte) (*Image, error) {
	img, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.New(imgerr.CorruptData, "decode webp", err)
	}
	icc, exif := readWebPMetadata(data)
	return NewImage(img, WebP, icc, exif), nil
}

// Encode кодирует WebP. По умолчанию с потерями по качеству,
// без потерь при opts.Lossless.
func (webpCodec) Encode(img *Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	err := webp.Encode(&buf, img.Pixels, webp.Options{
		Quality:  clampQuality(opts.Quality, 0),
		Lossless: opts.Lossless,
		Method:   webpMethod,
	})
	if err != nil {
		return nil, imgerr.New(imgerr.EncodeFailure, "encode webp", err)
	}

	out, err := writeWebPMetadata(buf.Bytes(), img.Width(), img.Height(), img.ICC, img.EXIF)
	if err != nil {
		return nil, imgerr.New(imgerr.EncodeFailure, "encode webp", err)
	}
	return out, nil
}
