// Package scanner собирает список исходных изображений из файлов и директорий.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/logger"
)

// File - исходное изображение пачки. После создания не меняется.
type File struct {
	// Path - абсолютный путь к файлу.
	Path string

	// RelPath - путь относительно входной директории (имя файла для явно указанных файлов).
	RelPath string

	// Size - размер в байтах.
	Size int64

	// ModTime - время модификации.
	ModTime time.Time

	// Format - формат, определённый по содержимому.
	Format codec.Format

	// Probed - формат распознан при сканировании.
	Probed bool
}

// Scanner обходит входные пути.
type Scanner struct {
	cfg *config.Config
}

// New создаёт новый Scanner.
func New(cfg *config.Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// Stat создаёт File для пути. root - входная директория для RelPath ("" для одиночного файла).
// Формат определяется по первым байтам; нераспознанный формат не ошибка,
// задача завершится UnsupportedFormat при декодировании.
func Stat(path, root string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("не удалось получить info %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s - директория", path)
	}

	rel := filepath.Base(abs)
	if root != "" {
		if r, err := filepath.Rel(root, abs); err == nil {
			rel = r
		}
	}

	f := File{Path: abs, RelPath: rel, Size: info.Size(), ModTime: info.ModTime()}
	if format, err := codec.DetectFile(abs); err == nil {
		f.Format = format
		f.Probed = true
	}
	return f, nil
}

// Scan запускает сканирование и отправляет найденные файлы в канал
// в порядке входных путей. Канал закрывается после завершения.
// Явно указанные файлы берутся всегда, из директорий - только по расширению.
func (s *Scanner) Scan(ctx context.Context) (<-chan File, <-chan error) {
	files := make(chan File, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		seen := make(map[string]bool)
		send := func(f File) error {
			if seen[f.Path] {
				return nil
			}
			seen[f.Path] = true
			select {
			case files <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, input := range s.cfg.Inputs {
			info, err := os.Stat(input)
			if err != nil {
				errs <- fmt.Errorf("не удалось прочитать %s: %w", input, err)
				return
			}
			if !info.IsDir() {
				f, err := Stat(input, "")
				if err != nil {
					errs <- err
					return
				}
				if err := send(f); err != nil {
					errs <- err
					return
				}
				continue
			}
			if err := s.walk(ctx, input, send); err != nil {
				errs <- err
				return
			}
		}
	}()

	return files, errs
}

func (s *Scanner) walk(ctx context.Context, root string, send func(File) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warnf("не удалось прочитать %s: %v", path, err)
			return nil
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if IsHidden(d.Name()) || !s.cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.Accept(path) {
			return nil
		}

		f, err := Stat(path, absRoot)
		if err != nil {
			logger.Warnf("%v", err)
			return nil
		}
		return send(f)
	})
}

// Accept проверяет, берётся ли файл из директории: не скрытый, не служебный
// файл macOS (._*), с подходящим расширением и не временный файл записи.
func (s *Scanner) Accept(path string) bool {
	name := filepath.Base(path)
	if IsHidden(name) || strings.Contains(name, TempMarker) {
		return false
	}
	return s.cfg.HasInputExtension(filepath.Ext(name))
}

// TempMarker - часть имени временного файла, который пишет конвертер.
const TempMarker = ".converting."

// IsHidden сообщает, что имя скрытое (включая ._* от macOS).
func IsHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// Collect собирает все файлы в срез.
func (s *Scanner) Collect(ctx context.Context) ([]File, error) {
	files, errs := s.Scan(ctx)
	var out []File
	for f := range files {
		out = append(out, f)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}

/*
Возможные расширения:
- Поддержка glob-паттернов и exclude-паттернов
- Параллельное определение формата для больших директорий
- Сортировка по дате съёмки из EXIF
*/
