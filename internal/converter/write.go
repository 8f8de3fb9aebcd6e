package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

// claims - выходные пути, уже занятые задачами пачки.
// Первая задача получает путь, остальные завершаются DestinationExists.
type claims struct {
	mu    sync.Mutex
	paths map[string]string
}

func newClaims() *claims {
	return &claims{paths: make(map[string]string)}
}

// claim закрепляет dst за src. Возвращает исходник, уже занявший путь.
func (c *claims) claim(dst, src string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.paths[dst]; ok && owner != src {
		return owner, false
	}
	c.paths[dst] = src
	return "", true
}

// TempPath возвращает путь временного файла для dst: photo.png -> photo.converting.png.
// Сканер пропускает такие файлы.
func TempPath(dst string) string {
	ext := filepath.Ext(dst)
	return strings.TrimSuffix(dst, ext) + scanner.TempMarker + strings.TrimPrefix(ext, ".")
}

// publish записывает данные в dst через временный файл.
// Политика fail публикует файл жёсткой ссылкой, которая не перезаписывает
// существующий путь; overwrite - переименованием.
func (c *Converter) publish(dst, src string, data []byte) (int64, error) {
	if owner, ok := c.claims.claim(dst, src); !ok {
		return 0, imgerr.Newf(imgerr.DestinationExists, "write", "путь %s уже занят файлом %s", dst, owner)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, imgerr.New(imgerr.IOFailure, "write", fmt.Errorf("не удалось создать директорию %s: %w", filepath.Dir(dst), err))
	}

	if c.conv.Collision == config.CollisionFail {
		if _, err := os.Lstat(dst); err == nil {
			return 0, existsError(dst)
		}
	}

	tmp := TempPath(dst)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return 0, imgerr.New(imgerr.IOFailure, "write", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	switch c.conv.Collision {
	case config.CollisionOverwrite:
		if err := os.Rename(tmp, dst); err != nil {
			return 0, imgerr.New(imgerr.IOFailure, "write",
				fmt.Errorf("не удалось переименовать %s -> %s: %w", tmp, dst, err))
		}
	default:
		if err := os.Link(tmp, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return 0, existsError(dst)
			}
			// Файловая система без жёстких ссылок
			if err := writeExclusive(dst, data); err != nil {
				return 0, err
			}
		}
	}
	return int64(len(data)), nil
}

// writeExclusive создаёт dst с O_EXCL и пишет данные.
func writeExclusive(dst string, data []byte) error {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return existsError(dst)
		}
		return imgerr.New(imgerr.IOFailure, "write", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return imgerr.New(imgerr.IOFailure, "write", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return imgerr.New(imgerr.IOFailure, "write", err)
	}
	return nil
}

func existsError(dst string) error {
	return imgerr.Newf(imgerr.DestinationExists, "write", "файл %s уже существует", dst)
}
