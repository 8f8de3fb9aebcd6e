package config

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/artemshloyda/imageconverter/internal/codec"
)

// SettingsVersion - версия схемы сохранённых настроек.
const SettingsVersion = 1

// Ключи таблицы настроек.
const (
	KeySchemaVersion    = "schema_version"
	KeyFormat           = "format"
	KeyQuality          = "quality"
	KeyResizeEnabled    = "resize_enabled"
	KeyResizeWidth      = "resize_width"
	KeyResizeHeight     = "resize_height"
	KeyResizeScale      = "resize_scale"
	KeyResizeFit        = "resize_fit"
	KeyOptimizePNG      = "optimize_png"
	KeyWebPLossless     = "webp_lossless"
	KeyPrefix           = "prefix"
	KeyReplacements     = "replacements"
	KeyResolutionSuffix = "resolution_suffix"
	KeyOutputDir        = "output_dir"
	KeyKeepTree         = "keep_tree"
	KeyMetadata         = "metadata"
	KeyCollision        = "collision"
	KeyWorkers          = "workers"
)

// ToSettings переводит параметры конвертации в плоский набор ключ/значение.
func (c *Conversion) ToSettings() map[string]string {
	repl, _ := json.Marshal(c.Naming.Replacements)
	return map[string]string{
		KeySchemaVersion:    strconv.Itoa(SettingsVersion),
		KeyFormat:           c.Format.String(),
		KeyQuality:          strconv.Itoa(c.Quality),
		KeyResizeEnabled:    strconv.FormatBool(c.Resize.Enabled),
		KeyResizeWidth:      strconv.Itoa(c.Resize.Width),
		KeyResizeHeight:     strconv.Itoa(c.Resize.Height),
		KeyResizeScale:      strconv.FormatFloat(c.Resize.Scale, 'g', -1, 64),
		KeyResizeFit:        strconv.FormatBool(c.Resize.Fit),
		KeyOptimizePNG:      strconv.FormatBool(c.OptimizePNG),
		KeyWebPLossless:     strconv.FormatBool(c.WebPLossless),
		KeyPrefix:           c.Naming.Prefix,
		KeyReplacements:     string(repl),
		KeyResolutionSuffix: strconv.FormatBool(c.Naming.ResolutionSuffix),
		KeyOutputDir:        c.OutputDir,
		KeyKeepTree:         strconv.FormatBool(c.KeepTree),
		KeyMetadata:         string(c.Metadata),
		KeyCollision:        string(c.Collision),
		KeyWorkers:          strconv.Itoa(c.Workers),
	}
}

// ApplySettings применяет сохранённые настройки поверх c.
// Неизвестные ключи игнорируются, отсутствующие оставляют текущие значения.
// Возвращает отсортированный список ключей с нераспознанными значениями.
func (c *Conversion) ApplySettings(s map[string]string) []string {
	var bad []string
	str := func(key string, dst *string) {
		if v, ok := s[key]; ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := s[key]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := s[key]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = b
		}
	}

	if v, ok := s[KeyFormat]; ok {
		if f, err := codec.ParseFormat(v); err == nil {
			c.Format = f
		} else {
			bad = append(bad, KeyFormat)
		}
	}
	integer(KeyQuality, &c.Quality)
	boolean(KeyResizeEnabled, &c.Resize.Enabled)
	integer(KeyResizeWidth, &c.Resize.Width)
	integer(KeyResizeHeight, &c.Resize.Height)
	if v, ok := s[KeyResizeScale]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Resize.Scale = f
		} else {
			bad = append(bad, KeyResizeScale)
		}
	}
	boolean(KeyResizeFit, &c.Resize.Fit)
	boolean(KeyOptimizePNG, &c.OptimizePNG)
	boolean(KeyWebPLossless, &c.WebPLossless)
	str(KeyPrefix, &c.Naming.Prefix)
	if v, ok := s[KeyReplacements]; ok && v != "" {
		var repl []Replacement
		if err := json.Unmarshal([]byte(v), &repl); err == nil {
			c.Naming.Replacements = repl
		} else {
			bad = append(bad, KeyReplacements)
		}
	}
	boolean(KeyResolutionSuffix, &c.Naming.ResolutionSuffix)
	str(KeyOutputDir, &c.OutputDir)
	boolean(KeyKeepTree, &c.KeepTree)
	if v, ok := s[KeyMetadata]; ok {
		switch p := MetadataPolicy(v); p {
		case MetadataStrip, MetadataPreserve:
			c.Metadata = p
		default:
			bad = append(bad, KeyMetadata)
		}
	}
	if v, ok := s[KeyCollision]; ok {
		switch p := CollisionPolicy(v); p {
		case CollisionFail, CollisionOverwrite:
			c.Collision = p
		default:
			bad = append(bad, KeyCollision)
		}
	}
	integer(KeyWorkers, &c.Workers)

	sort.Strings(bad)
	return bad
}
