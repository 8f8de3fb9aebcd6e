// Package report пишет файлы-отчёты по результатам пачки.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// DatasetLogName - имя файла со списком созданных файлов.
const DatasetLogName = "dataset_log.txt"

// WriteDatasetLog записывает в dir/dataset_log.txt имена созданных файлов,
// по одному на строку, в порядке входных файлов. С numbered строки
// начинаются с "N. ". Возвращает путь к файлу.
func WriteDatasetLog(dir string, outputs []string, numbered bool) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	path := filepath.Join(dir, DatasetLogName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("не удалось создать %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for i, out := range outputs {
		name := filepath.Base(out)
		if numbered {
			_, err = fmt.Fprintf(w, "%d. %s\n", i+1, name)
		} else {
			_, err = fmt.Fprintln(w, name)
		}
		if err != nil {
			return "", fmt.Errorf("не удалось записать %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("не удалось записать %s: %w", path, err)
	}
	return path, f.Close()
}
