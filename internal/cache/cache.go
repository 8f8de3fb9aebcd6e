// Package cache хранит закодированные результаты конвертации в pebble.
// Ключ - sha256 содержимого исходника и хэш параметров конвертации,
// поэтому переименованный или перемещённый файл попадает в кэш.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/artemshloyda/imageconverter/internal/logger"
)

// headerSize - размер заголовка записи (unix-время записи).
const headerSize = 8

// Cache - хранилище результатов. Безопасен для конкурентного использования.
type Cache struct {
	db  *pebble.DB
	dir string
}

// Open открывает (или создаёт) кэш в директории dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию кэша: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть кэш: %w", err)
	}
	logger.Debugf("кэш открыт: %s", dir)
	return &Cache{db: db, dir: dir}, nil
}

// Dir возвращает директорию кэша.
func (c *Cache) Dir() string {
	return c.dir
}

// Key вычисляет ключ кэша для содержимого исходника и хэша параметров.
func Key(source []byte, paramsHash string) string {
	h := sha256.Sum256(source)
	return hex.EncodeToString(h[:]) + ":" + paramsHash
}

// Get возвращает закодированный результат по ключу.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	value, closer, err := c.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("не удалось прочитать кэш: %w", err)
	}
	defer func() { _ = closer.Close() }()

	if len(value) < headerSize {
		return nil, false, nil
	}
	// value принадлежит pebble до Close
	out := make([]byte, len(value)-headerSize)
	copy(out, value[headerSize:])
	return out, true, nil
}

// Put сохраняет результат.
func (c *Cache) Put(key string, data []byte) error {
	value := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint64(value, uint64(time.Now().Unix()))
	copy(value[headerSize:], data)
	if err := c.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("не удалось записать кэш: %w", err)
	}
	return nil
}

// Stats возвращает число записей и суммарный размер результатов.
func (c *Cache) Stats() (entries int, size int64, err error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("не удалось обойти кэш: %w", err)
	}
	defer func() { _ = iter.Close() }()

	for iter.First(); iter.Valid(); iter.Next() {
		entries++
		if n := len(iter.Value()) - headerSize; n > 0 {
			size += int64(n)
		}
	}
	return entries, size, iter.Error()
}

// Prune удаляет записи старше maxAge и возвращает их количество.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	return c.deleteWhere(func(written time.Time) bool {
		return time.Since(written) > maxAge
	})
}

// Clear удаляет все записи.
func (c *Cache) Clear() (int, error) {
	return c.deleteWhere(func(time.Time) bool { return true })
}

func (c *Cache) deleteWhere(match func(written time.Time) bool) (int, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, fmt.Errorf("не удалось обойти кэш: %w", err)
	}

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var written time.Time
		if v := iter.Value(); len(v) >= headerSize {
			written = time.Unix(int64(binary.BigEndian.Uint64(v)), 0)
		}
		if match(written) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keys = append(keys, key)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, fmt.Errorf("не удалось обойти кэш: %w", err)
	}

	for _, key := range keys {
		if err := c.db.Delete(key, pebble.Sync); err != nil {
			return 0, fmt.Errorf("не удалось удалить запись кэша: %w", err)
		}
	}
	return len(keys), nil
}

// Close закрывает кэш.
func (c *Cache) Close() error {
	return c.db.Close()
}

/*
Возможные расширения:
- Лимит размера с вытеснением самых старых записей
- Сжатие больших PNG перед записью
*/
