// Package watcher следит за входными директориями и собирает новые файлы в пачки.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/logger"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

// Watcher превращает события файловой системы в пачки файлов.
// Файл попадает в пачку, когда он не менялся debounceTime.
type Watcher struct {
	cfg  *config.Config
	scan *scanner.Scanner

	// fs - fsnotify watcher.
	fs *fsnotify.Watcher

	// roots - абсолютные пути входных директорий.
	roots []string

	// outputDir - абсолютный путь выходной директории ("" = рядом с исходниками).
	outputDir string

	// debounceTime - время тишины, после которого файл считается записанным.
	debounceTime time.Duration

	// ignored - результаты конвертации, которые не должны стать новыми задачами.
	mu      sync.Mutex
	ignored map[string]bool
}

// New создаёт Watcher для директорий из cfg.Inputs.
func New(cfg *config.Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать watcher: %w", err)
	}

	w := &Watcher{
		cfg:          cfg,
		scan:         scanner.New(cfg),
		fs:           fw,
		debounceTime: 500 * time.Millisecond,
		ignored:      make(map[string]bool),
	}
	if cfg.Conversion.OutputDir != "" {
		if abs, err := filepath.Abs(cfg.Conversion.OutputDir); err == nil {
			w.outputDir = abs
		}
	}
	for _, in := range cfg.Inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		w.roots = append(w.roots, abs)
	}
	if len(w.roots) == 0 {
		_ = fw.Close()
		return nil, fmt.Errorf("для режима слежения нужна хотя бы одна входная директория")
	}
	return w, nil
}

// SetDebounceTime устанавливает время debounce.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.debounceTime = d
}

// Ignore исключает пути из будущих пачек (записанные результаты).
func (w *Watcher) Ignore(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.ignored[p] = true
	}
}

func (w *Watcher) isIgnored(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ignored[path]
}

// Watch начинает слежение. Канал закрывается при отмене ctx.
func (w *Watcher) Watch(ctx context.Context) (<-chan []scanner.File, error) {
	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return nil, err
		}
	}
	out := make(chan []scanner.File)
	go w.run(ctx, out)
	return out, nil
}

// addRecursive подписывается на директорию и (при Recursive) её поддиректории.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (scanner.IsHidden(d.Name()) || !w.cfg.Recursive || w.inOutputDir(path)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("не удалось добавить директорию %s: %w", path, err)
		}
		logger.Debugf("слежение: %s", path)
		return nil
	})
}

func (w *Watcher) inOutputDir(path string) bool {
	if w.outputDir == "" {
		return false
	}
	return path == w.outputDir || strings.HasPrefix(path, w.outputDir+string(filepath.Separator))
}

// run копит события и отдаёт готовые файлы пачками.
func (w *Watcher) run(ctx context.Context, out chan<- []scanner.File) {
	defer close(out)
	defer func() { _ = w.fs.Close() }()

	ticker := time.NewTicker(w.debounceTime / 4)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	var ready []scanner.File

	for {
		// Пока готовых файлов нет, канал отправки nil и ветка не выбирается
		var send chan<- []scanner.File
		if len(ready) > 0 {
			send = out
		}

		select {
		case <-ctx.Done():
			return

		case send <- ready:
			ready = nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event, pending)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warnf("ошибка watcher: %v", err)

		case now := <-ticker.C:
			ready = append(ready, w.collect(now, pending)...)
		}
	}
}

// handle обрабатывает одно событие fsnotify.
func (w *Watcher) handle(event fsnotify.Event, pending map[string]time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && w.cfg.Recursive && !scanner.IsHidden(info.Name()) && !w.inOutputDir(event.Name) {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Warnf("%v", err)
			}
		}
		return
	}
	if w.inOutputDir(event.Name) || !w.scan.Accept(event.Name) || w.isIgnored(event.Name) {
		return
	}
	pending[event.Name] = time.Now()
}

// collect забирает из pending файлы, которые не менялись debounceTime.
func (w *Watcher) collect(now time.Time, pending map[string]time.Time) []scanner.File {
	var paths []string
	for path, touched := range pending {
		if now.Sub(touched) >= w.debounceTime {
			paths = append(paths, path)
			delete(pending, path)
		}
	}
	sort.Strings(paths)

	var files []scanner.File
	for _, path := range paths {
		// Результат мог быть помечен уже после события
		if w.isIgnored(path) {
			continue
		}
		f, err := scanner.Stat(path, w.rootOf(path))
		if err != nil {
			continue
		}
		files = append(files, f)
	}
	return files
}

// rootOf возвращает входную директорию, в которой лежит путь.
func (w *Watcher) rootOf(path string) string {
	best := ""
	for _, root := range w.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

/*
Возможные расширения:
- Обработка переименования файлов в директории слежения
- Ограничение размера пачки
*/
