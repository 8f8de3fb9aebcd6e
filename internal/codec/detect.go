package codec

import (
	"bytes"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// sniffLen - сколько байт заголовка читается для определения формата.
const sniffLen = 3072

// heifBrands - major brand контейнера ISOBMFF, которые считаются HEIC/HEIF.
var heifBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "mif1": true, "msf1": true,
}

// Detect определяет формат по содержимому, расширение файла не используется.
func Detect(data []byte) (Format, error) {
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("image/jpeg"):
		return JPEG, nil
	case mime.Is("image/png"):
		return PNG, nil
	case mime.Is("image/webp"):
		return WebP, nil
	case mime.Is("image/heic"), mime.Is("image/heif"),
		mime.Is("image/heic-sequence"), mime.Is("image/heif-sequence"):
		return HEIC, nil
	}

	if f, ok := sniffMagic(data); ok {
		return f, nil
	}
	return 0, imgerr.Newf(imgerr.UnsupportedFormat, "detect", "неподдерживаемое содержимое (%s)", mime.String())
}

// DetectFile читает заголовок файла и определяет формат.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, imgerr.New(imgerr.IOFailure, "detect", err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, imgerr.New(imgerr.IOFailure, "detect", err)
	}
	return Detect(header[:n])
}

// sniffMagic - проверка сигнатур на случай, если mimetype не узнал файл
// (например, редкий brand HEIF).
func sniffMagic(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return JPEG, true
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return PNG, true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return WebP, true
	case len(data) >= 12 && string(data[4:8]) == "ftyp" && heifBrands[string(data[8:12])]:
		return HEIC, true
	}
	return 0, false
}
