package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/artemshloyda/imageconverter/internal/codec"
)

// FileVersion - текущая версия формата файла конфигурации.
const FileVersion = 1

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны: неизвестные ключи игнорируются, отсутствующие
// оставляют значения по умолчанию.
type FileConfig struct {
	// Version - версия формата файла.
	Version int `yaml:"version"`

	// Input - настройки входных данных.
	Input *InputConfig `yaml:"input,omitempty"`

	// Output - настройки выходных данных.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Resize - изменение размера.
	Resize *ResizeConfig `yaml:"resize,omitempty"`

	// Naming - правила имени файла.
	Naming *NamingConfig `yaml:"naming,omitempty"`

	// Processing - настройки обработки.
	Processing *ProcessingConfig `yaml:"processing,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`

	// Report - отчёт dataset_log.txt.
	Report *ReportConfig `yaml:"report,omitempty"`
}

// InputConfig содержит настройки входных данных.
type InputConfig struct {
	// Paths - файлы и директории.
	Paths []string `yaml:"paths,omitempty"`

	// Extensions - список расширений входных файлов.
	Extensions []string `yaml:"extensions,omitempty"`

	// Recursive - обходить поддиректории.
	Recursive *bool `yaml:"recursive,omitempty"`
}

// OutputConfig содержит настройки выходных данных.
type OutputConfig struct {
	// Dir - директория для сохранения результатов ("" = рядом с исходником).
	Dir string `yaml:"dir,omitempty"`

	// Format - выходной формат (jpg, png, webp).
	Format string `yaml:"format,omitempty"`

	// Quality - качество для lossy форматов (0-100).
	Quality *int `yaml:"quality,omitempty"`

	// OptimizePNG - оптимизация PNG.
	OptimizePNG *bool `yaml:"optimize_png,omitempty"`

	// WebPLossless - WebP без потерь.
	WebPLossless *bool `yaml:"webp_lossless,omitempty"`

	// Metadata - политика EXIF (strip, preserve).
	Metadata string `yaml:"metadata,omitempty"`

	// Collision - политика коллизий (fail, overwrite).
	Collision string `yaml:"collision,omitempty"`

	// KeepTree - сохранять структуру директорий.
	KeepTree *bool `yaml:"keep_tree,omitempty"`
}

// ResizeConfig содержит настройки изменения размера.
type ResizeConfig struct {
	Width  int     `yaml:"width,omitempty"`
	Height int     `yaml:"height,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
	Fit    bool    `yaml:"fit,omitempty"`
}

// NamingConfig содержит правила имени файла.
type NamingConfig struct {
	Prefix           string        `yaml:"prefix,omitempty"`
	Replacements     []Replacement `yaml:"replacements,omitempty"`
	ResolutionSuffix bool          `yaml:"resolution_suffix,omitempty"`
}

// ProcessingConfig содержит настройки обработки.
type ProcessingConfig struct {
	// Workers - количество параллельных воркеров.
	Workers int `yaml:"workers,omitempty"`

	// MaxInputMB - максимальный размер входного файла в мегабайтах.
	MaxInputMB int `yaml:"max_input_mb,omitempty"`

	// MaxMemoryMB - ограничение памяти на декодирование.
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`

	// Cache - кэш результатов.
	Cache bool `yaml:"cache,omitempty"`

	// Verbose - подробный вывод.
	Verbose bool `yaml:"verbose,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// DB - путь к SQLite базе данных.
	DB string `yaml:"db,omitempty"`

	// CacheDir - директория кэша.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// LogFile - файл лога.
	LogFile string `yaml:"log_file,omitempty"`

	// MetricsFile - файл метрик Prometheus.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// ReportConfig содержит настройки отчёта.
type ReportConfig struct {
	DatasetLog bool `yaml:"dataset_log,omitempty"`
	Numbering  bool `yaml:"numbering,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./imageconverter.yaml (текущая директория)
// 2. ./imageconverter.yml
// 3. ~/.config/imageconverter/config.yaml
// 4. ~/.config/imageconverter/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		appName + ".yaml",
		appName + ".yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appName, "config.yaml"),
			filepath.Join(home, ".config", appName, "config.yml"),
		)
	}
	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}
	if fc.Version > FileVersion {
		return nil, fmt.Errorf("файл %s: версия %d новее поддерживаемой %d", path, fc.Version, FileVersion)
	}
	return &fc, nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, "", nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}
	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к конфигурации.
// CLI флаги имеют приоритет, поэтому вызывается до применения флагов.
func (fc *FileConfig) ApplyToConfig(cfg *Config) error {
	if fc == nil {
		return nil
	}
	conv := &cfg.Conversion

	if in := fc.Input; in != nil {
		if len(in.Paths) > 0 {
			cfg.Inputs = in.Paths
		}
		if len(in.Extensions) > 0 {
			cfg.InputExtensions = in.Extensions
		}
		if in.Recursive != nil {
			cfg.Recursive = *in.Recursive
		}
	}

	if out := fc.Output; out != nil {
		if out.Dir != "" {
			conv.OutputDir = out.Dir
		}
		if out.Format != "" {
			f, err := codec.ParseFormat(out.Format)
			if err != nil {
				return err
			}
			conv.Format = f
		}
		if out.Quality != nil {
			conv.Quality = *out.Quality
		}
		if out.OptimizePNG != nil {
			conv.OptimizePNG = *out.OptimizePNG
		}
		if out.WebPLossless != nil {
			conv.WebPLossless = *out.WebPLossless
		}
		if out.Metadata != "" {
			conv.Metadata = MetadataPolicy(out.Metadata)
		}
		if out.Collision != "" {
			conv.Collision = CollisionPolicy(out.Collision)
		}
		if out.KeepTree != nil {
			conv.KeepTree = *out.KeepTree
		}
	}

	if r := fc.Resize; r != nil {
		conv.Resize = Resize{
			Enabled: r.Width > 0 || r.Height > 0 || r.Scale > 0,
			Width:   r.Width,
			Height:  r.Height,
			Scale:   r.Scale,
			Fit:     r.Fit,
		}
	}

	if n := fc.Naming; n != nil {
		conv.Naming = Naming{
			Prefix:           n.Prefix,
			Replacements:     append([]Replacement(nil), n.Replacements...),
			ResolutionSuffix: n.ResolutionSuffix,
		}
	}

	if p := fc.Processing; p != nil {
		if p.Workers > 0 {
			conv.Workers = p.Workers
		}
		if p.MaxInputMB > 0 {
			conv.MaxInputBytes = int64(p.MaxInputMB) << 20
		}
		if p.MaxMemoryMB > 0 {
			conv.MaxMemoryMB = p.MaxMemoryMB
		}
		if p.Cache {
			conv.Cache = true
		}
		if p.Verbose {
			cfg.Verbose = true
		}
		if p.NoProgress {
			cfg.NoProgress = true
		}
	}

	if p := fc.Paths; p != nil {
		if p.DB != "" {
			cfg.DBPath = p.DB
		}
		if p.CacheDir != "" {
			cfg.CacheDir = p.CacheDir
		}
		if p.LogFile != "" {
			cfg.LogFile = p.LogFile
		}
		if p.MetricsFile != "" {
			cfg.MetricsFile = p.MetricsFile
		}
	}

	if r := fc.Report; r != nil {
		cfg.DatasetLog = r.DatasetLog
		cfg.DatasetNumbering = r.Numbering
	}
	return nil
}

// FromConfig строит FileConfig из параметров конвертации.
// Пути ввода не сохраняются: пресет описывает как конвертировать, а не что.
func FromConfig(cfg *Config) *FileConfig {
	conv := cfg.Conversion
	quality := conv.Quality
	keepTree := conv.KeepTree
	optimize := conv.OptimizePNG
	lossless := conv.WebPLossless

	fc := &FileConfig{
		Version: FileVersion,
		Output: &OutputConfig{
			Dir:          conv.OutputDir,
			Format:       conv.Format.String(),
			Quality:      &quality,
			OptimizePNG:  &optimize,
			WebPLossless: &lossless,
			Metadata:     string(conv.Metadata),
			Collision:    string(conv.Collision),
			KeepTree:     &keepTree,
		},
		Processing: &ProcessingConfig{
			Workers:     conv.Workers,
			MaxMemoryMB: conv.MaxMemoryMB,
			Cache:       conv.Cache,
		},
	}
	if conv.Resize.Enabled {
		fc.Resize = &ResizeConfig{
			Width:  conv.Resize.Width,
			Height: conv.Resize.Height,
			Scale:  conv.Resize.Scale,
			Fit:    conv.Resize.Fit,
		}
	}
	if conv.Naming.Prefix != "" || len(conv.Naming.Replacements) > 0 || conv.Naming.ResolutionSuffix {
		fc.Naming = &NamingConfig{
			Prefix:           conv.Naming.Prefix,
			Replacements:     append([]Replacement(nil), conv.Naming.Replacements...),
			ResolutionSuffix: conv.Naming.ResolutionSuffix,
		}
	}
	if cfg.DatasetLog {
		fc.Report = &ReportConfig{DatasetLog: true, Numbering: cfg.DatasetNumbering}
	}
	return fc
}

// SaveToFile записывает конфигурацию в YAML.
func (fc *FileConfig) SaveToFile(path string) error {
	if fc.Version == 0 {
		fc.Version = FileVersion
	}
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать конфигурацию: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", path, err)
	}
	return nil
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# ImageConverter Configuration File
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.
version: 1

input:
  # Файлы и директории
  paths:
    - "./photos"
  # Расширения файлов, которые берутся из директорий (без точки)
  extensions: [jpg, jpeg, png, webp, heic, heif]
  # Обходить поддиректории
  recursive: true

output:
  # Директория для результатов (пусто = рядом с исходником)
  dir: "./converted"
  # Выходной формат: jpg, png, webp (heic только для чтения)
  format: webp
  # Качество для lossy форматов (0-100)
  quality: 85
  # PNG: палитра и максимальное сжатие
  optimize_png: false
  # WebP без потерь
  webp_lossless: false
  # EXIF: strip или preserve (сохраняется только для JPEG -> JPEG)
  metadata: strip
  # Существующий файл: fail или overwrite
  collision: fail
  # Сохранять структуру директорий
  keep_tree: true

resize:
  # Одна сторона - вторая по пропорции; обе - точный размер; fit - вписать в рамку
  width: 1920
  height: 0
  scale: 0
  fit: true

naming:
  prefix: "conv_"
  replacements:
    - find: "IMG"
      replace: "photo"
  resolution_suffix: true

processing:
  # Количество параллельных воркеров (по умолчанию = CPU cores)
  workers: 8
  # Максимальный размер входного файла, МБ
  max_input_mb: 100
  # Ограничение памяти на декодирование, МБ (0 = без ограничения)
  max_memory_mb: 0
  # Кэш результатов
  cache: false
  verbose: false
  no_progress: false

paths:
  # Путь к SQLite базе (настройки и история)
  db: ""
  cache_dir: ""
  log_file: ""
  metrics_file: ""

report:
  # Записать dataset_log.txt в выходную директорию
  dataset_log: false
  numbering: false
`
}

/*
Возможные расширения:
- Поддержка переменных окружения в конфиге
- Миграция файлов старых версий формата
*/
