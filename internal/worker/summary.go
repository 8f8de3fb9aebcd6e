package worker

import (
	"fmt"
	"time"

	"github.com/artemshloyda/imageconverter/internal/converter"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/storage"
)

// Event - сообщение пачки: результат одного файла или итог пачки.
// Ровно одно из полей заполнено.
type Event struct {
	Outcome *converter.Result
	Summary *Summary
}

// Summary - итог пачки.
type Summary struct {
	// BatchID - идентификатор пачки.
	BatchID string

	// Status - done или cancelled.
	Status storage.BatchStatus

	Total     int
	Succeeded int
	Failed    int
	Cancelled int

	// Warnings - число предупреждений у успешных задач.
	Warnings int

	// ByKind - число неудачных задач по категориям ошибок.
	ByKind map[imgerr.Kind]int

	// InputBytes - размер исходников успешных задач.
	InputBytes int64

	// OutputBytes - размер записанных файлов.
	OutputBytes int64

	// Outputs - пути записанных файлов в порядке входных файлов.
	Outputs []string

	// Duration - время пачки.
	Duration time.Duration
}

// SavedBytes возвращает количество сэкономленных байт.
func (s *Summary) SavedBytes() int64 {
	return s.InputBytes - s.OutputBytes
}

// SavedPercent возвращает процент экономии.
func (s *Summary) SavedPercent() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.SavedBytes()) / float64(s.InputBytes) * 100
}

// FormatBytes форматирует байты в человекочитаемый формат.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		return "-" + FormatBytes(-bytes)
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
