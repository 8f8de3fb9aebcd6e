package converter

import (
	"fmt"
	"time"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

// Stage - стадия конвейера обработки файла.
type Stage int

const (
	// Queued - задача принята пулом и ждёт воркера.
	Queued Stage = iota
	// Decoding - чтение и декодирование исходника.
	Decoding
	// ColorNormalizing - приведение к sRGB.
	ColorNormalizing
	// Resizing - изменение размера.
	Resizing
	// ApplyingMetadata - подготовка EXIF и ICC.
	ApplyingMetadata
	// Encoding - кодирование в целевой формат.
	Encoding
	// Writing - запись на диск.
	Writing
)

var stageNames = [...]string{
	Queued:           "Queued",
	Decoding:         "Decoding",
	ColorNormalizing: "ColorNormalizing",
	Resizing:         "Resizing",
	ApplyingMetadata: "ApplyingMetadata",
	Encoding:         "Encoding",
	Writing:          "Writing",
}

// String возвращает имя стадии.
func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}

// Status - конечное состояние задачи.
type Status int

const (
	// StatusSucceeded - файл записан.
	StatusSucceeded Status = iota + 1
	// StatusFailed - задача завершилась ошибкой.
	StatusFailed
	// StatusCancelled - пачка отменена до завершения задачи.
	StatusCancelled
)

// String возвращает имя статуса в нижнем регистре (так он хранится в истории).
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result - итог обработки одного файла.
type Result struct {
	// Source - исходный файл, по нему результат сопоставляется с входом.
	Source scanner.File

	// Status - конечное состояние.
	Status Status

	// Stage - последняя стадия, до которой дошла задача.
	// Для неудачных задач - стадия, на которой произошла ошибка.
	Stage Stage

	// OutputPath - путь к записанному файлу.
	OutputPath string

	// BytesWritten - размер записанного файла.
	BytesWritten int64

	// Width, Height - размеры результата.
	Width  int
	Height int

	// Cached - результат взят из кэша.
	Cached bool

	// Duration - время обработки.
	Duration time.Duration

	// Err - причина неудачи или отмены.
	Err error

	// Warnings - не фатальные проблемы (например, нераспознанный ICC профиль).
	Warnings []string
}

// Kind возвращает категорию ошибки результата.
func (r *Result) Kind() imgerr.Kind {
	return imgerr.KindOf(r.Err)
}

// CancelledResult возвращает результат задачи, которая не вышла из очереди.
func CancelledResult(file scanner.File, cause error) *Result {
	return &Result{
		Source: file,
		Status: StatusCancelled,
		Stage:  Queued,
		Err:    imgerr.WithPath(imgerr.New(imgerr.Cancelled, "dispatch", cause), file.Path),
	}
}

// String возвращает строку для лога.
func (r *Result) String() string {
	switch r.Status {
	case StatusSucceeded:
		return fmt.Sprintf("%s -> %s (%d байт)", r.Source.RelPath, r.OutputPath, r.BytesWritten)
	default:
		return fmt.Sprintf("%s: %s на стадии %s: %v", r.Source.RelPath, r.Status, r.Stage, r.Err)
	}
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Stage = stage
	r.Status = StatusFailed
	r.Err = imgerr.WithPath(err, r.Source.Path)
	return r
}
