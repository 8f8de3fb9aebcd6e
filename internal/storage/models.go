package storage

import "time"

// BatchStatus определяет статус пачки.
type BatchStatus string

const (
	// BatchRunning - пачка выполняется.
	BatchRunning BatchStatus = "running"
	// BatchDone - все задачи дошли до конечного состояния.
	BatchDone BatchStatus = "done"
	// BatchCancelled - пачка отменена.
	BatchCancelled BatchStatus = "cancelled"
	// BatchInterrupted - процесс завершился, не закрыв пачку.
	BatchInterrupted BatchStatus = "interrupted"
)

// Batch - запись о пачке.
type Batch struct {
	ID         string
	Params     string
	ParamsHash string
	Total      int
	Succeeded  int
	Failed     int
	Cancelled  int
	Status     BatchStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Job - результат обработки одного файла.
type Job struct {
	// BatchID - пачка, к которой относится задача.
	BatchID string

	// SrcPath - абсолютный путь к исходному файлу.
	SrcPath string

	// SrcSize - размер исходного файла в байтах.
	SrcSize int64

	// SrcFormat - формат исходника ("" если не распознан).
	SrcFormat string

	// OutFormat - целевой формат.
	OutFormat string

	// DstPath - путь к выходному файлу (для успешных задач).
	DstPath string

	// Status - succeeded, failed или cancelled.
	Status string

	// Stage - стадия, на которой задача завершилась.
	Stage string

	// ErrorKind - категория ошибки.
	ErrorKind string

	// Error - сообщение об ошибке.
	Error string

	// Warnings - предупреждения через "; ".
	Warnings string

	// BytesWritten - размер результата.
	BytesWritten int64

	// Duration - время обработки.
	Duration time.Duration
}

// Stats - агрегированная статистика по истории.
type Stats struct {
	Batches      int64
	Interrupted  int64
	Jobs         int64
	Succeeded    int64
	Failed       int64
	Cancelled    int64
	BytesRead    int64
	BytesWritten int64
	// ByErrorKind - число неудачных задач по категориям.
	ByErrorKind map[string]int64
}

/*
Возможные расширения:
- Хранить версию кодеков для воспроизводимости результатов
- Теги пачек для группировки в статистике
*/
