// Package converter выполняет конвейер обработки одного файла:
// декодирование, приведение к sRGB, изменение размера, метаданные,
// кодирование и запись.
package converter

import (
	"bytes"
	"context"
	"image"
	"io"
	"os"
	"time"

	"github.com/artemshloyda/imageconverter/internal/cache"
	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/colorspace"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/logger"
	"github.com/artemshloyda/imageconverter/internal/metadata"
	"github.com/artemshloyda/imageconverter/internal/naming"
	"github.com/artemshloyda/imageconverter/internal/resize"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

// Converter обрабатывает файлы одной пачки. Параметры конвертации
// фиксируются при создании и не меняются.
type Converter struct {
	// conv - параметры пачки (копия).
	conv config.Conversion

	// paramsHash - хэш параметров для ключа кэша.
	paramsHash string

	// registry - кодеки.
	registry *codec.Registry

	// colors - менеджер цвета, общий для пачек.
	colors *colorspace.Manager

	// cache - кэш результатов (nil = выключен).
	cache *cache.Cache

	// claims - выходные пути, занятые задачами пачки.
	claims *claims
}

// Option настраивает Converter.
type Option func(*Converter)

// WithCache включает кэш результатов.
func WithCache(c *cache.Cache) Option {
	return func(cv *Converter) {
		cv.cache = c
	}
}

// New создаёт Converter для пачки.
func New(conv config.Conversion, registry *codec.Registry, colors *colorspace.Manager, opts ...Option) *Converter {
	c := &Converter{
		conv:     conv.Clone(),
		registry: registry,
		colors:   colors,
		claims:   newClaims(),
	}
	c.paramsHash = c.conv.ParamsHash()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert проводит файл через все стадии. Отмена проверяется между
// стадиями до начала кодирования; начатые кодирование и запись
// доводятся до конца.
// Паника на любой стадии превращается в неудачу этой стадии,
// остальные задачи пачки продолжаются.
func (c *Converter) Convert(ctx context.Context, file scanner.File) (res *Result) {
	start := time.Now()
	r := &Result{Source: file, Stage: Queued}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("%s: паника на стадии %s: %v", file.Path, r.Stage, rec)
			res = r.fail(r.Stage, imgerr.Newf(imgerr.Unknown, r.Stage.String(), "паника: %v", rec))
		}
		r.Duration = time.Since(start)
	}()

	target := c.conv.Format
	// Неподдерживаемая цель отклоняется без чтения исходника.
	if !c.registry.CanEncode(target) {
		return r.fail(Queued, imgerr.Newf(imgerr.UnsupportedEncode, "encode",
			"кодирование в %s не поддерживается", target))
	}

	if !c.checkpoint(ctx, r, Decoding) {
		return r
	}
	data, err := readSource(file.Path, c.conv.MaxInputBytes)
	if err != nil {
		return r.fail(Decoding, err)
	}

	var key string
	if c.cache != nil {
		key = cache.Key(data, c.paramsHash)
		if encoded, w, h, ok := c.lookup(key); ok {
			r.Cached = true
			logger.Debugf("кэш: %s", file.Path)
			return c.write(r, encoded, w, h)
		}
	}

	img, err := c.registry.Decode(data)
	if err != nil {
		return r.fail(Decoding, err)
	}
	if o := metadata.Orient(img); o != 1 {
		logger.Debugf("%s: применена ориентация %d", file.Path, o)
	}

	if !c.checkpoint(ctx, r, ColorNormalizing) {
		return r
	}
	if err := c.colors.Normalize(img); err != nil {
		// Профиль не разобран: пиксели остаются как есть, задача продолжается.
		logger.Warnf("%s: %v", file.Path, err)
		r.Warnings = append(r.Warnings, err.Error())
	}

	if !c.checkpoint(ctx, r, Resizing) {
		return r
	}
	w, h := resize.Dimensions(img.Width(), img.Height(), c.conv.Resize)
	resize.Apply(img, w, h)

	if !c.checkpoint(ctx, r, ApplyingMetadata) {
		return r
	}
	metadata.Apply(img, target, c.conv.Metadata)

	if !c.checkpoint(ctx, r, Encoding) {
		return r
	}
	encoded, err := c.registry.Encode(img, target, c.conv.EncodeOptions())
	if err != nil {
		return r.fail(Encoding, err)
	}

	// Результат с предупреждениями не кэшируется: попадание в кэш
	// потеряло бы их.
	if c.cache != nil && len(r.Warnings) == 0 {
		if err := c.cache.Put(key, encoded); err != nil {
			logger.Warnf("%s: %v", file.Path, err)
		}
	}
	return c.write(r, encoded, w, h)
}

// checkpoint переводит задачу на стадию next, если пачка не отменена.
func (c *Converter) checkpoint(ctx context.Context, r *Result, next Stage) bool {
	if err := ctx.Err(); err != nil {
		r.Status = StatusCancelled
		r.Err = imgerr.WithPath(imgerr.New(imgerr.Cancelled, "checkpoint "+next.String(), err), r.Source.Path)
		return false
	}
	r.Stage = next
	return true
}

// lookup достаёт результат из кэша вместе с его размерами.
func (c *Converter) lookup(key string) ([]byte, int, int, bool) {
	encoded, ok, err := c.cache.Get(key)
	if err != nil {
		logger.Warnf("%v", err)
		return nil, 0, 0, false
	}
	if !ok {
		return nil, 0, 0, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(encoded))
	if err != nil {
		logger.Warnf("повреждённая запись кэша %s: %v", key, err)
		return nil, 0, 0, false
	}
	return encoded, cfg.Width, cfg.Height, true
}

// write вычисляет путь результата и записывает его с учётом политики коллизий.
func (c *Converter) write(r *Result, encoded []byte, w, h int) *Result {
	r.Stage = Writing
	r.Width, r.Height = w, h

	name := naming.ComputeName(r.Source.Path, c.conv.Naming, c.conv.Format, w, h)
	if name == "" {
		return r.fail(Writing, imgerr.Newf(imgerr.InvalidConfig, "name",
			"правила имени дают пустое имя для %s", r.Source.RelPath))
	}
	dst := naming.Destination(r.Source.Path, r.Source.RelPath, c.conv.OutputDir, c.conv.KeepTree, name)

	n, err := c.publish(dst, r.Source.Path, encoded)
	if err != nil {
		return r.fail(Writing, err)
	}
	r.Status = StatusSucceeded
	r.OutputPath = dst
	r.BytesWritten = n
	return r
}

// readSource читает исходник целиком, не больше limit байт (0 = без ограничения).
func readSource(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, imgerr.New(imgerr.IOFailure, "read", err)
	}
	defer func() { _ = f.Close() }()

	var rd io.Reader = f
	if limit > 0 {
		rd = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, imgerr.New(imgerr.IOFailure, "read", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, imgerr.Newf(imgerr.IOFailure, "read", "файл больше лимита %d байт", limit)
	}
	return data, nil
}

// EstimateMemory оценивает память под декодирование файла.
// Размеры берутся из заголовка; если заголовок не читается, оценка - утроенный размер файла.
func EstimateMemory(file scanner.File, r config.Resize) int64 {
	f, err := os.Open(file.Path)
	if err == nil {
		cfg, _, derr := image.DecodeConfig(f)
		_ = f.Close()
		if derr == nil {
			return resize.EstimateBytes(cfg.Width, cfg.Height, r)
		}
	}
	return file.Size * 3
}

/*
Возможные расширения:
- Таймаут на один файл
- Потоковое декодирование больших JPEG
*/
