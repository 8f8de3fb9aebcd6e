// Package config содержит конфигурацию приложения и параметры конвертации.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

const (
	// DefaultQuality - качество по умолчанию для lossy форматов.
	DefaultQuality = 85

	// DefaultMaxInputBytes - максимальный размер входного файла (100 МиБ).
	DefaultMaxInputBytes = 100 << 20
)

// MetadataPolicy определяет судьбу EXIF.
type MetadataPolicy string

const (
	// MetadataStrip - удалять EXIF (по умолчанию).
	MetadataStrip MetadataPolicy = "strip"
	// MetadataPreserve - сохранять EXIF при конвертации JPEG -> JPEG.
	MetadataPreserve MetadataPolicy = "preserve"
)

// CollisionPolicy определяет поведение при существующем выходном файле.
type CollisionPolicy string

const (
	// CollisionFail - задача завершается ошибкой DestinationExists (по умолчанию).
	CollisionFail CollisionPolicy = "fail"
	// CollisionOverwrite - существующий файл заменяется.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// Resize описывает целевые размеры. Ноль означает "не задано".
type Resize struct {
	// Enabled - включить изменение размера.
	Enabled bool `json:"enabled"`

	// Width, Height - целевые размеры. Если задано одно, второе считается по пропорции.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Scale - коэффициент масштабирования (несовместим с Width/Height).
	Scale float64 `json:"scale"`

	// Fit - вписать в рамку Width x Height с сохранением пропорций, без увеличения.
	Fit bool `json:"fit"`
}

// Replacement - пара поиск/замена для имени файла.
type Replacement struct {
	Find    string `json:"find" yaml:"find"`
	Replace string `json:"replace" yaml:"replace"`
}

// Naming - правила формирования имени выходного файла.
type Naming struct {
	// Prefix добавляется перед базовым именем.
	Prefix string `json:"prefix"`

	// Replacements применяются последовательно, каждая видит результат предыдущей.
	Replacements []Replacement `json:"replacements"`

	// ResolutionSuffix добавляет суффикс _WxH.
	ResolutionSuffix bool `json:"resolution_suffix"`
}

// Conversion - параметры одной пачки. После старта пачки не меняется.
type Conversion struct {
	// Format - целевой формат.
	Format codec.Format

	// Quality - качество 0-100 для lossy форматов.
	Quality int

	// Resize - изменение размера.
	Resize Resize

	// OptimizePNG - палитра и максимальное сжатие для PNG.
	OptimizePNG bool

	// WebPLossless - кодировать WebP без потерь.
	WebPLossless bool

	// Naming - правила имени файла.
	Naming Naming

	// OutputDir - выходная директория ("" = рядом с исходником).
	OutputDir string

	// KeepTree - сохранять структуру поддиректорий в OutputDir.
	KeepTree bool

	// Metadata - политика EXIF.
	Metadata MetadataPolicy

	// Collision - политика при существующем выходном файле.
	Collision CollisionPolicy

	// Workers - количество параллельных воркеров.
	Workers int

	// MaxInputBytes - максимальный размер входного файла.
	MaxInputBytes int64

	// MaxMemoryMB - ограничение оценки памяти на декодирование (0 = без ограничения).
	MaxMemoryMB int

	// Cache - использовать кэш результатов.
	Cache bool
}

// DefaultConversion возвращает параметры конвертации по умолчанию.
func DefaultConversion() Conversion {
	return Conversion{
		Format:        codec.JPEG,
		Quality:       DefaultQuality,
		KeepTree:      true,
		Metadata:      MetadataStrip,
		Collision:     CollisionFail,
		Workers:       runtime.NumCPU(),
		MaxInputBytes: DefaultMaxInputBytes,
	}
}

// Validate проверяет параметры один раз перед запуском пачки.
func (c *Conversion) Validate() error {
	const op = "validate config"

	if !c.Format.Valid() {
		return imgerr.Newf(imgerr.InvalidConfig, op, "неизвестный формат: %d", c.Format)
	}
	if c.Quality < 0 || c.Quality > 100 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "качество должно быть от 0 до 100, получено: %d", c.Quality)
	}
	if c.Workers < 1 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "количество воркеров должно быть >= 1, получено: %d", c.Workers)
	}
	if c.MaxInputBytes < 0 || c.MaxMemoryMB < 0 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "лимиты не могут быть отрицательными")
	}
	switch c.Metadata {
	case MetadataStrip, MetadataPreserve:
	default:
		return imgerr.Newf(imgerr.InvalidConfig, op, "неизвестная политика метаданных: %q (доступны: strip, preserve)", c.Metadata)
	}
	switch c.Collision {
	case CollisionFail, CollisionOverwrite:
	default:
		return imgerr.Newf(imgerr.InvalidConfig, op, "неизвестная политика коллизий: %q (доступны: fail, overwrite)", c.Collision)
	}
	for i, r := range c.Naming.Replacements {
		if r.Find == "" {
			return imgerr.Newf(imgerr.InvalidConfig, op, "правило замены #%d: пустая строка поиска", i+1)
		}
	}
	if strings.ContainsAny(c.Naming.Prefix, `/\`) {
		return imgerr.Newf(imgerr.InvalidConfig, op, "префикс не может содержать разделители пути: %q", c.Naming.Prefix)
	}
	return c.Resize.validate()
}

func (r Resize) validate() error {
	const op = "validate resize"
	if !r.Enabled {
		return nil
	}
	if r.Width < 0 || r.Height < 0 || r.Scale < 0 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "размеры не могут быть отрицательными: %dx%d, scale %g", r.Width, r.Height, r.Scale)
	}
	if r.Scale > 0 && (r.Width > 0 || r.Height > 0) {
		return imgerr.Newf(imgerr.InvalidConfig, op, "scale нельзя совмещать с шириной или высотой")
	}
	if r.Scale == 0 && r.Width == 0 && r.Height == 0 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "не заданы ни размеры, ни scale")
	}
	if r.Fit && r.Scale > 0 {
		return imgerr.Newf(imgerr.InvalidConfig, op, "fit задаётся рамкой, а не scale")
	}
	return nil
}

// Clone возвращает глубокую копию, которую пачка хранит у себя.
func (c Conversion) Clone() Conversion {
	c.Naming.Replacements = append([]Replacement(nil), c.Naming.Replacements...)
	return c
}

// EncodeOptions возвращает параметры кодека.
func (c *Conversion) EncodeOptions() codec.EncodeOptions {
	return codec.EncodeOptions{
		Quality:     c.Quality,
		OptimizePNG: c.OptimizePNG,
		Lossless:    c.WebPLossless,
	}
}

// Params возвращает параметры, влияющие на байты результата, в виде JSON.
// Имя файла и политика коллизий в них не входят.
func (c *Conversion) Params() string {
	params := map[string]interface{}{
		"format":        c.Format.String(),
		"quality":       c.Quality,
		"resize":        c.Resize,
		"optimize_png":  c.OptimizePNG,
		"webp_lossless": c.WebPLossless,
		"metadata":      c.Metadata,
	}
	b, _ := json.Marshal(params)
	return string(b)
}

// ParamsHash возвращает sha256 хэш Params.
func (c *Conversion) ParamsHash() string {
	h := sha256.Sum256([]byte(c.Params()))
	return hex.EncodeToString(h[:])
}

// Config содержит настройки приложения вокруг движка конвертации.
type Config struct {
	// Inputs - файлы и директории для обработки.
	Inputs []string

	// InputExtensions - расширения, которые берутся из директорий (без точки, lowercase).
	InputExtensions []string

	// Recursive - обходить поддиректории.
	Recursive bool

	// DBPath - путь к SQLite базе (настройки и история).
	DBPath string

	// Verbose - подробный вывод.
	Verbose bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool

	// Watch - режим слежения за директориями.
	Watch bool

	// LogFile - файл лога ("" = только консоль).
	LogFile string

	// LogLevel - уровень лога (debug, info, warn, error).
	LogLevel string

	// DatasetLog - записать dataset_log.txt со списком созданных файлов.
	DatasetLog bool

	// DatasetNumbering - нумеровать строки dataset_log.txt.
	DatasetNumbering bool

	// MetricsFile - путь для экспорта метрик Prometheus в текстовом формате.
	MetricsFile string

	// CacheDir - директория кэша результатов.
	CacheDir string

	// Preset - встроенный профиль (web, print, archive, thumbnail).
	Preset string

	// Conversion - параметры движка.
	Conversion Conversion
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		InputExtensions: []string{"jpg", "jpeg", "png", "webp", "heic", "heif"},
		Recursive:       true,
		DBPath:          DefaultDBPath(),
		LogLevel:        "warn",
		CacheDir:        DefaultCacheDir(),
		Conversion:      DefaultConversion(),
	}
}

// DefaultDBPath возвращает путь к базе по умолчанию.
func DefaultDBPath() string {
	return filepath.Join(appConfigDir(), "state.sqlite")
}

// DefaultCacheDir возвращает директорию кэша по умолчанию.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-cache")
}

const appName = "imageconverter"

func appConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return "." + appName
}

// Validate проверяет конфигурацию приложения и параметры конвертации.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return imgerr.Newf(imgerr.InvalidConfig, "validate config", "не указаны входные файлы или директории")
	}
	if len(c.InputExtensions) == 0 {
		return imgerr.Newf(imgerr.InvalidConfig, "validate config", "не указаны расширения входных файлов (--in-ext)")
	}
	return c.Conversion.Validate()
}

// HasInputExtension проверяет, поддерживается ли расширение файла.
func (c *Config) HasInputExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range c.InputExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

/*
Возможные расширения:
- Режим resize "cover" с обрезкой под рамку
- Прогрессивный JPEG
- Отдельное качество для альфа-канала WebP
*/
