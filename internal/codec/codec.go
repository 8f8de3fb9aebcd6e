package codec

import (
	"fmt"
	"sync"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// EncodeOptions - параметры кодирования, общие для всех форматов.
type EncodeOptions struct {
	// Quality - качество 0-100, учитывается только lossy форматами.
	Quality int

	// OptimizePNG - медленное, но более компактное сжатие PNG.
	OptimizePNG bool

	// Lossless - кодировать WebP без потерь.
	Lossless bool
}

// Codec - декодер и кодировщик одного формата.
type Codec interface {
	// Format возвращает формат, который обслуживает кодек.
	Format() Format

	// Capabilities возвращает возможности кодека.
	Capabilities() Capabilities

	// Decode декодирует файл целиком вместе с ICC и EXIF контейнера.
	Decode(data []byte) (*Image, error)

	// Encode кодирует изображение, встраивая img.ICC и img.EXIF если формат это поддерживает.
	Encode(img *Image, opts EncodeOptions) ([]byte, error)
}

// Registry сопоставляет каждому формату его кодек.
type Registry struct {
	mu     sync.RWMutex
	codecs [formatCount]Codec
}

// NewRegistry создаёт реестр со стандартными кодеками.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(jpegCodec{})
	r.Register(pngCodec{})
	r.Register(webpCodec{})
	r.Register(heicCodec{})
	return r
}

// Register устанавливает кодек для его формата, заменяя предыдущий.
func (r *Registry) Register(c Codec) {
	f := c.Format()
	if !f.Valid() {
		panic(fmt.Sprintf("codec: регистрация кодека для неизвестного формата %d", uint8(f)))
	}
	r.mu.Lock()
	r.codecs[f] = c
	r.mu.Unlock()
}

// Lookup возвращает кодек формата.
func (r *Registry) Lookup(f Format) (Codec, bool) {
	if !f.Valid() {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.codecs[f]
	return c, c != nil
}

// CanEncode проверяет таблицу возможностей и наличие кодировщика.
func (r *Registry) CanEncode(f Format) bool {
	if !f.Capabilities().Encode {
		return false
	}
	c, ok := r.Lookup(f)
	return ok && c.Capabilities().Encode
}

// Decode определяет формат по содержимому и декодирует данные.
// Паника внутри декодера возвращается как CorruptData.
func (r *Registry) Decode(data []byte) (img *Image, err error) {
	f, err := Detect(data)
	if err != nil {
		return nil, err
	}
	c, ok := r.Lookup(f)
	if !ok || !f.Capabilities().Decode || !c.Capabilities().Decode {
		return nil, imgerr.Newf(imgerr.UnsupportedFormat, "decode", "нет декодера для %s", f)
	}

	op := "decode " + f.String()
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, imgerr.New(imgerr.CorruptData, op, panicError(rec))
		}
	}()
	img, err = c.Decode(data)
	if err != nil {
		if imgerr.KindOf(err) == imgerr.Unknown {
			return nil, imgerr.New(imgerr.CorruptData, op, err)
		}
		return nil, err
	}
	return img, nil
}

// Encode кодирует изображение в целевой формат.
// Неподдерживаемая цель отклоняется до обращения к кодеку.
// Паника внутри кодировщика возвращается как EncodeFailure.
func (r *Registry) Encode(img *Image, target Format, opts EncodeOptions) (data []byte, err error) {
	if !r.CanEncode(target) {
		return nil, imgerr.Newf(imgerr.UnsupportedEncode, "encode", "кодирование в %s не поддерживается", target)
	}
	c, _ := r.Lookup(target)

	op := "encode " + target.String()
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, imgerr.New(imgerr.EncodeFailure, op, panicError(rec))
		}
	}()
	data, err = c.Encode(img, opts)
	if err != nil {
		if imgerr.KindOf(err) == imgerr.Unknown {
			return nil, imgerr.New(imgerr.EncodeFailure, op, err)
		}
		return nil, err
	}
	return data, nil
}

// panicError превращает значение recover() в ошибку.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("паника: %w", err)
	}
	return fmt.Errorf("паника: %v", rec)
}

/*
Возможные расширения:
- Добавить декодирование по потоку без чтения файла целиком
- Добавить выбор реализации кодека по приоритету (cgo или чистый Go)
*/
