// Package progress выводит прогресс пачки в терминал.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Counts - счётчики завершённых задач.
type Counts struct {
	Succeeded int64
	Failed    int64
	Cancelled int64
}

// Done возвращает число задач в конечном состоянии.
func (c Counts) Done() int64 {
	return c.Succeeded + c.Failed + c.Cancelled
}

// Bar - прогресс-бар пачки с ETA. Обновляется агрегатором пачки,
// сообщения воркеров выводятся через WriteMessage.
type Bar struct {
	// bar - внутренний progressbar (nil, если вывод отключён).
	bar *progressbar.ProgressBar

	// mu защищает bar и счётчики.
	mu sync.Mutex

	counts Counts

	// disabled - бар не рисуется, сообщения пишутся как есть.
	disabled bool

	startTime time.Time

	// writer - куда выводить (по умолчанию os.Stderr).
	writer io.Writer
}

// Options содержит настройки прогресс-бара.
type Options struct {
	// Total - количество файлов в пачке.
	Total int64

	// Description - подпись слева от бара.
	Description string

	// Disabled - без бара (не терминал или --no-progress).
	Disabled bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// New создаёт прогресс-бар.
func New(opts Options) *Bar {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	b := &Bar{
		disabled:  opts.Disabled,
		startTime: time.Now(),
		writer:    writer,
	}
	if opts.Disabled || opts.Total <= 0 {
		return b
	}

	description := opts.Description
	if description == "" {
		description = "Конвертация"
	}
	b.bar = progressbar.NewOptions64(
		opts.Total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("файл"),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[cyan]█[reset]",
			SaucerHead:    "[cyan]▓[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
	return b
}

// Succeeded отмечает записанный файл.
func (b *Bar) Succeeded() {
	b.add(&b.counts.Succeeded)
}

// Failed отмечает файл с ошибкой.
func (b *Bar) Failed() {
	b.add(&b.counts.Failed)
}

// Cancelled отмечает отменённый файл.
func (b *Bar) Cancelled() {
	b.add(&b.counts.Cancelled)
}

func (b *Bar) add(counter *int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	*counter++
	if b.bar != nil {
		b.bar.Describe(b.describe())
		_ = b.bar.Add(1)
	}
}

// describe возвращает подпись с ошибками и отменами, если они есть.
func (b *Bar) describe() string {
	switch {
	case b.counts.Failed > 0 && b.counts.Cancelled > 0:
		return fmt.Sprintf("Конвертация [red](%d ошибок, %d отменено)[reset]", b.counts.Failed, b.counts.Cancelled)
	case b.counts.Failed > 0:
		return fmt.Sprintf("Конвертация [red](%d ошибок)[reset]", b.counts.Failed)
	case b.counts.Cancelled > 0:
		return fmt.Sprintf("Конвертация [yellow](%d отменено)[reset]", b.counts.Cancelled)
	}
	return "Конвертация"
}

// Finish завершает прогресс-бар.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Counts возвращает текущие счётчики.
func (b *Bar) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Duration возвращает время с начала пачки.
func (b *Bar) Duration() time.Duration {
	return time.Since(b.startTime)
}

// IsDisabled возвращает true, если бар не рисуется.
func (b *Bar) IsDisabled() bool {
	return b.disabled
}

// WriteMessage выводит сообщение, временно скрывая бар.
func (b *Bar) WriteMessage(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Clear()
	}
	fmt.Fprintf(b.writer, format, args...)
	if b.bar != nil {
		_ = b.bar.RenderBlank()
	}
}

/*
Возможные расширения:
- Отдельная строка с текущим файлом каждого воркера
- Скорость в мегапикселях в секунду
*/
