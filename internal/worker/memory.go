package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// MemoryLimiter ограничивает суммарную оценку памяти задач, которые
// декодируются одновременно.
type MemoryLimiter struct {
	// sem - бюджет в байтах (nil = без ограничения).
	sem *semaphore.Weighted

	// maxBytes - размер бюджета.
	maxBytes int64
}

// NewMemoryLimiter создаёт ограничитель.
// maxMemoryMB - ограничение в мегабайтах (0 = без ограничения).
func NewMemoryLimiter(maxMemoryMB int) *MemoryLimiter {
	if maxMemoryMB <= 0 {
		return &MemoryLimiter{}
	}
	limit := int64(maxMemoryMB) << 20
	return &MemoryLimiter{sem: semaphore.NewWeighted(limit), maxBytes: limit}
}

// Acquire резервирует estimate байт и блокируется, пока бюджет занят.
// Задача больше всего бюджета получает весь бюджет и выполняется одна.
// Возвращает функцию освобождения.
func (ml *MemoryLimiter) Acquire(ctx context.Context, estimate int64) (release func(), err error) {
	if ml.sem == nil {
		return func() {}, nil
	}
	n := estimate
	if n > ml.maxBytes {
		n = ml.maxBytes
	}
	if n < 1 {
		n = 1
	}
	if err := ml.sem.Acquire(ctx, n); err != nil {
		return nil, err
	}
	return func() { ml.sem.Release(n) }, nil
}

// IsEnabled возвращает true, если ограничение включено.
func (ml *MemoryLimiter) IsEnabled() bool {
	return ml.sem != nil
}

// MaxMemory возвращает размер бюджета в байтах.
func (ml *MemoryLimiter) MaxMemory() int64 {
	return ml.maxBytes
}

/*
Возможные расширения:
- Адаптивный бюджет по доступной памяти системы
*/
