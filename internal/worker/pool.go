// Package worker запускает пачки конвертации на ограниченном пуле воркеров.
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artemshloyda/imageconverter/internal/cache"
	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/colorspace"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/converter"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/logger"
	"github.com/artemshloyda/imageconverter/internal/metrics"
	"github.com/artemshloyda/imageconverter/internal/naming"
	"github.com/artemshloyda/imageconverter/internal/progress"
	"github.com/artemshloyda/imageconverter/internal/scanner"
	"github.com/artemshloyda/imageconverter/internal/storage"
)

// Pool запускает пачки. Кодеки и кэш ICC преобразований общие для всех пачек.
type Pool struct {
	registry *codec.Registry
	colors   *colorspace.Manager

	// storage - история пачек (nil = не писать).
	storage *storage.Storage

	// cache - кэш результатов, используется пачками с Conversion.Cache.
	cache *cache.Cache

	// metrics - метрики (nil = не собирать).
	metrics *metrics.Metrics

	// newBar создаёт прогресс-бар на пачку (nil = без бара).
	newBar func(total int) *progress.Bar
}

// Option настраивает Pool.
type Option func(*Pool)

// WithStorage включает запись истории.
func WithStorage(s *storage.Storage) Option {
	return func(p *Pool) { p.storage = s }
}

// WithCache задаёт кэш результатов.
func WithCache(c *cache.Cache) Option {
	return func(p *Pool) { p.cache = c }
}

// WithMetrics включает сбор метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithProgress задаёт фабрику прогресс-бара.
func WithProgress(newBar func(total int) *progress.Bar) Option {
	return func(p *Pool) { p.newBar = newBar }
}

// New создаёт пул.
func New(registry *codec.Registry, opts ...Option) *Pool {
	p := &Pool{
		registry: registry,
		colors:   colorspace.NewManager(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Batch - запущенная пачка.
type Batch struct {
	// ID - идентификатор пачки (UUID).
	ID string

	// Events - по одному Outcome на файл в порядке завершения и один Summary в конце.
	// Буфер вмещает все события, поэтому пачка никогда не ждёт читателя.
	// Канал закрывается после Summary.
	Events <-chan Event

	// Total - количество файлов.
	Total int

	bar     *progress.Bar
	cancel  context.CancelFunc
	done    chan struct{}
	summary Summary
}

// Cancel отменяет пачку. Задачи в очереди завершаются Cancelled,
// начатые доходят до ближайшей контрольной точки.
func (b *Batch) Cancel() {
	b.cancel()
}

// Done закрывается, когда все задачи дошли до конечного состояния.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait ждёт завершения пачки и возвращает итог.
func (b *Batch) Wait() Summary {
	<-b.done
	return b.summary
}

// Progress возвращает прогресс-бар пачки (может быть nil).
func (b *Batch) Progress() *progress.Bar {
	return b.bar
}

// indexed - результат с номером входного файла.
type indexed struct {
	idx    int
	result *converter.Result
}

// Start проверяет параметры и запускает пачку.
// Некорректная конфигурация (в том числе вырожденное имя выходного файла)
// возвращается ошибкой InvalidConfig до запуска задач.
func (p *Pool) Start(ctx context.Context, conv config.Conversion, files []scanner.File) (*Batch, error) {
	conv = conv.Clone()
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	for _, f := range files {
		if naming.BaseName(f.Path, conv.Naming) == "" {
			return nil, imgerr.WithPath(imgerr.Newf(imgerr.InvalidConfig, "validate naming",
				"правила имени дают пустое имя"), f.Path)
		}
	}

	var opts []converter.Option
	if conv.Cache && p.cache != nil {
		opts = append(opts, converter.WithCache(p.cache))
	}
	cv := converter.New(conv, p.registry, p.colors, opts...)

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, len(files)+1)
	b := &Batch{
		ID:     uuid.NewString(),
		Events: events,
		Total:  len(files),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if p.newBar != nil {
		b.bar = p.newBar(len(files))
	}

	if p.storage != nil {
		if err := p.storage.StartBatch(b.ID, conv.Params(), conv.ParamsHash(), len(files)); err != nil {
			logger.Warnf("история: %v", err)
		}
	}
	logger.Infof("пачка %s: %d файлов, формат %s, воркеров %d", b.ID, len(files), conv.Format, conv.Workers)

	results := make(chan indexed, conv.Workers)
	go p.dispatch(ctx, conv, cv, files, results)
	go p.aggregate(ctx, b, conv, files, results, events)
	return b, nil
}

// Run запускает пачку, дожидается её и возвращает итог и результаты
// в порядке завершения.
func (p *Pool) Run(ctx context.Context, conv config.Conversion, files []scanner.File) (Summary, []*converter.Result, error) {
	b, err := p.Start(ctx, conv, files)
	if err != nil {
		return Summary{}, nil, err
	}
	var outcomes []*converter.Result
	for ev := range b.Events {
		if ev.Outcome != nil {
			outcomes = append(outcomes, ev.Outcome)
		}
	}
	return b.Wait(), outcomes, nil
}

// dispatch раздаёт задачи фиксированному числу воркеров. После отмены
// оставшиеся в очереди задачи сразу получают Cancelled.
func (p *Pool) dispatch(ctx context.Context, conv config.Conversion, cv *converter.Converter,
	files []scanner.File, results chan<- indexed) {
	jobs := make(chan int)
	limiter := NewMemoryLimiter(conv.MaxMemoryMB)

	var wg sync.WaitGroup
	for i := 0; i < conv.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- indexed{idx: idx, result: p.process(ctx, cv, limiter, conv.Resize, files[idx])}
			}
		}()
	}

	for i, f := range files {
		if ctx.Err() != nil {
			results <- indexed{idx: i, result: converter.CancelledResult(f, ctx.Err())}
			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			results <- indexed{idx: i, result: converter.CancelledResult(f, ctx.Err())}
		}
	}
	close(jobs)
	wg.Wait()
}

// process выполняет одну задачу с учётом бюджета памяти.
func (p *Pool) process(ctx context.Context, cv *converter.Converter, limiter *MemoryLimiter,
	r config.Resize, file scanner.File) *converter.Result {
	if limiter.IsEnabled() {
		release, err := limiter.Acquire(ctx, converter.EstimateMemory(file, r))
		if err != nil {
			return converter.CancelledResult(file, err)
		}
		defer release()
	}
	return cv.Convert(ctx, file)
}

// aggregate - единственный владелец счётчиков пачки: обновляет прогресс,
// историю и метрики, публикует события.
func (p *Pool) aggregate(ctx context.Context, b *Batch, conv config.Conversion, files []scanner.File,
	results <-chan indexed, events chan<- Event) {
	start := time.Now()
	sum := Summary{
		BatchID: b.ID,
		Total:   len(files),
		ByKind:  make(map[imgerr.Kind]int),
	}
	outputs := make([]string, len(files))

	for n := 0; n < len(files); n++ {
		item := <-results
		r := item.result

		switch r.Status {
		case converter.StatusSucceeded:
			sum.Succeeded++
			sum.Warnings += len(r.Warnings)
			sum.InputBytes += r.Source.Size
			sum.OutputBytes += r.BytesWritten
			outputs[item.idx] = r.OutputPath
			logger.Debugf("%s", r)
			if b.bar != nil {
				b.bar.Succeeded()
			}
		case converter.StatusCancelled:
			sum.Cancelled++
			if b.bar != nil {
				b.bar.Cancelled()
			}
		default:
			sum.Failed++
			sum.ByKind[r.Kind()]++
			logger.Errorf("%s", r)
			if b.bar != nil {
				b.bar.Failed()
			}
		}

		if p.storage != nil {
			if err := p.storage.RecordJob(jobFromResult(b.ID, conv.Format, r)); err != nil {
				logger.Warnf("история: %v", err)
			}
		}
		if p.metrics != nil {
			p.metrics.Observe(r)
		}
		events <- Event{Outcome: r}
	}

	for _, out := range outputs {
		if out != "" {
			sum.Outputs = append(sum.Outputs, out)
		}
	}
	sum.Status = storage.BatchDone
	if sum.Cancelled > 0 || ctx.Err() != nil {
		sum.Status = storage.BatchCancelled
	}
	sum.Duration = time.Since(start)
	b.cancel()

	if b.bar != nil {
		b.bar.Finish()
	}
	if p.storage != nil {
		if err := p.storage.FinishBatch(b.ID, sum.Succeeded, sum.Failed, sum.Cancelled, sum.Status); err != nil {
			logger.Warnf("история: %v", err)
		}
	}
	if p.metrics != nil {
		p.metrics.BatchFinished(string(sum.Status))
	}
	logger.Infof("пачка %s завершена: %d успешно, %d ошибок, %d отменено за %s",
		b.ID, sum.Succeeded, sum.Failed, sum.Cancelled, sum.Duration.Round(time.Millisecond))

	b.summary = sum
	events <- Event{Summary: &sum}
	close(events)
	close(b.done)
}

// jobFromResult переводит результат в запись истории.
func jobFromResult(batchID string, target codec.Format, r *converter.Result) storage.Job {
	j := storage.Job{
		BatchID:      batchID,
		SrcPath:      r.Source.Path,
		SrcSize:      r.Source.Size,
		OutFormat:    target.String(),
		DstPath:      r.OutputPath,
		Status:       r.Status.String(),
		Stage:        r.Stage.String(),
		Warnings:     strings.Join(r.Warnings, "; "),
		BytesWritten: r.BytesWritten,
		Duration:     r.Duration,
	}
	if r.Source.Probed {
		j.SrcFormat = r.Source.Format.String()
	}
	if r.Err != nil && r.Status != converter.StatusSucceeded {
		j.ErrorKind = r.Kind().String()
		j.Error = r.Err.Error()
	}
	return j
}

/*
Возможные расширения:
- Приоритет маленьких файлов в очереди
- Повтор задач с IOFailure
*/
