package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NamedPreset - сохранённый пользователем набор параметров конвертации.
type NamedPreset struct {
	// Name - имя пресета.
	Name string
	// Path - путь к файлу пресета.
	Path string
	// Config - содержимое файла (nil, если файл не разобран).
	Config *FileConfig
	// Err - ошибка загрузки.
	Err error
}

// presetsDir переопределяется в тестах.
var presetsDir = func() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("не удалось получить домашнюю директорию: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName, "presets"), nil
}

// GetPresetPath возвращает путь к файлу пресета по имени.
func GetPresetPath(name string) (string, error) {
	dir, err := presetsDir()
	if err != nil {
		return "", err
	}
	safeName := sanitizePresetName(name)
	if safeName == "" || safeName != name {
		return "", fmt.Errorf("некорректное имя пресета: %q (допустимы буквы, цифры, - и _)", name)
	}
	return filepath.Join(dir, safeName+".yaml"), nil
}

// sanitizePresetName оставляет только буквы, цифры, дефисы и подчёркивания.
func sanitizePresetName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SavePreset сохраняет параметры конвертации как именованный пресет.
func SavePreset(name string, cfg *Config) (string, error) {
	if _, ok := Presets[Preset(name)]; ok {
		return "", fmt.Errorf("имя %q занято встроенным пресетом", name)
	}
	path, err := GetPresetPath(name)
	if err != nil {
		return "", err
	}
	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		return "", fmt.Errorf("не удалось сохранить пресет: %w", err)
	}
	return path, nil
}

// LoadPreset загружает именованный пресет.
func LoadPreset(name string) (*FileConfig, string, error) {
	path, err := GetPresetPath(name)
	if err != nil {
		return nil, "", err
	}
	fc, err := LoadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("не удалось загрузить пресет '%s': %w", name, err)
	}
	if fc == nil {
		return nil, "", fmt.Errorf("пресет '%s' не найден", name)
	}
	return fc, path, nil
}

// ListPresets возвращает сохранённые пресеты, отсортированные по имени.
func ListPresets() ([]NamedPreset, error) {
	dir, err := presetsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать директорию пресетов: %w", err)
	}

	var presets []NamedPreset
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		fc, err := LoadFromFile(path)
		presets = append(presets, NamedPreset{
			Name:   strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml"),
			Path:   path,
			Config: fc,
			Err:    err,
		})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})
	return presets, nil
}

// DeletePreset удаляет именованный пресет.
func DeletePreset(name string) error {
	path, err := GetPresetPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("пресет '%s' не найден", name)
		}
		return fmt.Errorf("не удалось удалить пресет: %w", err)
	}
	return nil
}
