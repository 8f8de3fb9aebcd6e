// Package naming вычисляет имя и путь выходного файла.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
)

// BaseName применяет префикс и замены к имени исходника без расширения.
// Возвращает "", если получилось пустое или вырожденное имя.
func BaseName(source string, rules config.Naming) string {
	stem := filepath.Base(source)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	name := rules.Prefix + stem
	for _, r := range rules.Replacements {
		if r.Find == "" {
			continue
		}
		name = strings.ReplaceAll(name, r.Find, r.Replace)
	}

	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ""
	}
	return name
}

// ComputeName возвращает имя выходного файла: префикс, замены по порядку,
// суффикс _WxH (если включён) и расширение целевого формата.
// Функция чистая; пустой результат означает вырожденное имя.
func ComputeName(source string, rules config.Naming, target codec.Format, width, height int) string {
	name := BaseName(source, rules)
	if name == "" {
		return ""
	}
	if rules.ResolutionSuffix {
		name += fmt.Sprintf("_%dx%d", width, height)
	}
	return name + "." + target.Extension()
}

// Destination возвращает путь выходного файла.
// Без outputDir файл пишется рядом с исходником; с keepTree в outputDir
// повторяется поддиректория relPath.
func Destination(srcPath, relPath, outputDir string, keepTree bool, name string) string {
	if outputDir == "" {
		return filepath.Join(filepath.Dir(srcPath), name)
	}
	if keepTree && relPath != "" {
		if sub := filepath.Dir(relPath); sub != "." {
			return filepath.Join(outputDir, sub, name)
		}
	}
	return filepath.Join(outputDir, name)
}
