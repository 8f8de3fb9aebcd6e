// Package codec содержит адаптеры кодеков JPEG, PNG, WebP и HEIC.
package codec

import (
	"fmt"
	"strings"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// Format - закрытое перечисление поддерживаемых форматов.
type Format uint8

const (
	// JPEG - формат JPEG.
	JPEG Format = iota
	// PNG - формат PNG.
	PNG
	// WebP - формат WebP.
	WebP
	// HEIC - формат HEIC/HEIF (только декодирование).
	HEIC

	formatCount
)

// Capabilities описывает, что кодек умеет делать с форматом.
type Capabilities struct {
	// Decode - формат можно декодировать.
	Decode bool
	// Encode - в формат можно кодировать.
	Encode bool
}

// capabilities - таблица возможностей, индексируется Format.
var capabilities = [formatCount]Capabilities{
	JPEG: {Decode: true, Encode: true},
	PNG:  {Decode: true, Encode: true},
	WebP: {Decode: true, Encode: true},
	HEIC: {Decode: true, Encode: false},
}

var formatNames = [formatCount]string{
	JPEG: "jpeg",
	PNG:  "png",
	WebP: "webp",
	HEIC: "heic",
}

var formatExtensions = [formatCount]string{
	JPEG: "jpg",
	PNG:  "png",
	WebP: "webp",
	HEIC: "heic",
}

// Formats возвращает все форматы в порядке объявления.
func Formats() []Format {
	return []Format{JPEG, PNG, WebP, HEIC}
}

// Valid проверяет, что значение входит в перечисление.
func (f Format) Valid() bool {
	return f < formatCount
}

// String возвращает имя формата.
func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return formatNames[f]
}

// Extension возвращает расширение файла без точки.
func (f Format) Extension() string {
	if !f.Valid() {
		return ""
	}
	return formatExtensions[f]
}

// Capabilities возвращает строку таблицы возможностей для формата.
func (f Format) Capabilities() Capabilities {
	if !f.Valid() {
		return Capabilities{}
	}
	return capabilities[f]
}

// MarshalText сериализует формат по имени (для YAML и JSON).
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("неизвестный формат: %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText разбирает формат по имени или расширению.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat разбирает имя формата или расширение (jpg, jpeg, png, webp, heic, heif).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	case "heic", "heif":
		return HEIC, nil
	}
	return 0, imgerr.Newf(imgerr.InvalidConfig, "parse format", "неизвестный формат: %q (доступны: jpg, png, webp, heic)", s)
}

/*
Возможные расширения:
- Добавить AVIF и JPEG XL в перечисление
- Добавить GIF (первый кадр) как формат только для чтения
*/
