package config

import (
	"github.com/artemshloyda/imageconverter/internal/codec"
)

// Preset определяет профиль качества.
type Preset string

const (
	// PresetWeb - оптимизация для веба: webp, качество 75, вписать в 1920 по ширине, без EXIF.
	PresetWeb Preset = "web"
	// PresetPrint - высокое качество для печати: jpeg 95, без resize, EXIF сохраняется.
	PresetPrint Preset = "print"
	// PresetArchive - архив: PNG без потерь с оптимизацией, EXIF сохраняется.
	PresetArchive Preset = "archive"
	// PresetThumbnail - превью: webp, качество 60, рамка 300x300.
	PresetThumbnail Preset = "thumbnail"
)

// PresetConfig содержит настройки для пресета.
type PresetConfig struct {
	// Format - выходной формат.
	Format codec.Format
	// Quality - качество (0-100).
	Quality int
	// MaxWidth - ширина рамки (0 = без ограничения).
	MaxWidth int
	// MaxHeight - высота рамки (0 = без ограничения).
	MaxHeight int
	// OptimizePNG - оптимизация PNG.
	OptimizePNG bool
	// Metadata - политика EXIF.
	Metadata MetadataPolicy
}

// Presets содержит все доступные пресеты.
var Presets = map[Preset]PresetConfig{
	PresetWeb: {
		Format:   codec.WebP,
		Quality:  75,
		MaxWidth: 1920,
		Metadata: MetadataStrip,
	},
	PresetPrint: {
		Format:   codec.JPEG,
		Quality:  95,
		Metadata: MetadataPreserve,
	},
	PresetArchive: {
		Format:      codec.PNG,
		Quality:     100,
		OptimizePNG: true,
		Metadata:    MetadataPreserve,
	},
	PresetThumbnail: {
		Format:    codec.WebP,
		Quality:   60,
		MaxWidth:  300,
		MaxHeight: 300,
		Metadata:  MetadataStrip,
	},
}

// ApplyPreset применяет пресет к параметрам конвертации.
// Возвращает true, если пресет был применён.
func (c *Conversion) ApplyPreset(preset string) bool {
	p, ok := Presets[Preset(preset)]
	if !ok {
		return false
	}

	c.Format = p.Format
	c.Quality = p.Quality
	c.OptimizePNG = p.OptimizePNG
	c.Metadata = p.Metadata
	c.Resize = Resize{}
	if p.MaxWidth > 0 || p.MaxHeight > 0 {
		c.Resize = Resize{Enabled: true, Width: p.MaxWidth, Height: p.MaxHeight, Fit: true}
	}
	return true
}

// ValidPresets возвращает список доступных пресетов.
func ValidPresets() []string {
	return []string{
		string(PresetWeb),
		string(PresetPrint),
		string(PresetArchive),
		string(PresetThumbnail),
	}
}

/*
Возможные расширения:
- Пресеты для социальных сетей (instagram, telegram)
- Пресет с ограничением итогового размера файла
*/
