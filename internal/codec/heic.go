package codec

import (
	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// heicCodec только декодирует HEIC/HEIF. Реализация декодера выбирается
// тегом сборки: по умолчанию чистый Go (wasm), с тегом libheif - через cgo.
type heicCodec struct{}

func (heicCodec) Format() Format { return HEIC }

func (heicCodec) Capabilities() Capabilities { return HEIC.Capabilities() }

// Decode декодирует основное изображение контейнера. Ориентация и
// поворот применяются декодером, поэтому EXIF не извлекается.
func (heicCodec) Decode(data []byte) (*Image, error) {
	img, err := decodeHEIC(data)
	if err != nil {
		return nil, imgerr.New(imgerr.CorruptData, "decode heic", err)
	}
	return NewImage(img, HEIC, nil, nil), nil
}

// Encode всегда отказывает: кодирование в HEIC не поддерживается.
func (heicCodec) Encode(*Image, EncodeOptions) ([]byte, error) {
	return nil, imgerr.Newf(imgerr.UnsupportedEncode, "encode heic", "кодирование в HEIC не поддерживается")
}
