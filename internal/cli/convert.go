package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/imageconverter/internal/cache"
	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/converter"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/logger"
	"github.com/artemshloyda/imageconverter/internal/metrics"
	"github.com/artemshloyda/imageconverter/internal/progress"
	"github.com/artemshloyda/imageconverter/internal/report"
	"github.com/artemshloyda/imageconverter/internal/scanner"
	"github.com/artemshloyda/imageconverter/internal/storage"
	"github.com/artemshloyda/imageconverter/internal/watcher"
	"github.com/artemshloyda/imageconverter/internal/worker"
)

// runConvert выполняет конвертацию.
func runConvert(cmd *cobra.Command, opts *options) error {
	cfg, store, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	saved, err := saveRequested(opts, cfg, store)
	if err != nil {
		return err
	}
	if saved && len(cfg.Inputs) == 0 {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogger(cmd, cfg); err != nil {
		return err
	}
	defer logger.Close()

	// Контекст с отменой по сигналу
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, warnStyle.Render("\n⚠️  Получен сигнал прерывания, отменяем незапущенные файлы..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	if n, err := store.CleanupInProgress(); err != nil {
		logger.Warnf("история: %v", err)
	} else if n > 0 {
		fmt.Printf("🧹 Пачек, прерванных в прошлый раз: %d\n", n)
	}

	poolOpts := []worker.Option{
		worker.WithStorage(store),
		worker.WithProgress(func(total int) *progress.Bar {
			return progress.New(progress.Options{
				Total:    int64(total),
				Disabled: cfg.NoProgress || !isTerminal(),
			})
		}),
	}

	m := metrics.New()
	poolOpts = append(poolOpts, worker.WithMetrics(m))

	if cfg.Conversion.Cache {
		c, err := cache.Open(cfg.CacheDir)
		if err != nil {
			// Без кэша конвертация всё равно возможна
			logger.Warnf("кэш недоступен: %v", err)
			cfg.Conversion.Cache = false
		} else {
			defer func() { _ = c.Close() }()
			poolOpts = append(poolOpts, worker.WithCache(c))
		}
	}

	pool := worker.New(codec.NewRegistry(), poolOpts...)
	printParams(cfg)

	var w *watcher.Watcher
	var batches <-chan []scanner.File
	if cfg.Watch {
		w, err = watcher.New(cfg)
		if err != nil {
			return err
		}
		// Подписываемся до первой пачки, чтобы не потерять файлы, появившиеся во время неё
		if batches, err = w.Watch(ctx); err != nil {
			return err
		}
	}
	ignore := func(path string) {
		if w != nil {
			w.Ignore(path)
		}
	}

	files, err := scanner.New(cfg).Collect(ctx)
	if err != nil {
		return fmt.Errorf("ошибка сканирования: %w", err)
	}
	fmt.Printf("📦 Найдено файлов: %d\n", len(files))

	var summary worker.Summary
	if len(files) > 0 {
		summary, err = runBatch(ctx, pool, cfg, m, files, ignore)
		if err != nil {
			return err
		}
	} else if !cfg.Watch {
		fmt.Println("Нет файлов для обработки.")
		return nil
	}

	if cfg.Watch {
		fmt.Println(titleStyle.Render("👀 Слежение за новыми файлами (Ctrl+C для выхода)"))
		for files := range batches {
			fmt.Printf("\n📥 Новых файлов: %d\n", len(files))
			if _, err := runBatch(ctx, pool, cfg, m, files, ignore); err != nil {
				logger.Errorf("%v", err)
			}
		}
		return nil
	}

	if summary.Status == storage.BatchCancelled {
		return fmt.Errorf("конвертация прервана: отменено %d из %d файлов", summary.Cancelled, summary.Total)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("не удалось конвертировать %d из %d файлов", summary.Failed, summary.Total)
	}
	return nil
}

// runBatch запускает одну пачку, печатает результаты по мере готовности и пишет отчёты.
func runBatch(ctx context.Context, pool *worker.Pool, cfg *config.Config, m *metrics.Metrics,
	files []scanner.File, ignore func(string)) (worker.Summary, error) {

	b, err := pool.Start(ctx, cfg.Conversion, files)
	if err != nil {
		return worker.Summary{}, err
	}
	fmt.Printf("🚀 Пачка %s\n", dimStyle.Render(b.ID))

	bar := b.Progress()
	var summary worker.Summary
	for ev := range b.Events {
		if r := ev.Outcome; r != nil {
			if r.OutputPath != "" {
				ignore(r.OutputPath)
			}
			printOutcome(bar, cfg.Verbose, r)
		}
		if ev.Summary != nil {
			summary = *ev.Summary
		}
	}

	if cfg.DatasetLog {
		path, err := report.WriteDatasetLog(cfg.Conversion.OutputDir, summary.Outputs, cfg.DatasetNumbering)
		if err != nil {
			logger.Errorf("%v", err)
		} else {
			fmt.Printf("📝 Список файлов: %s\n", path)
		}
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteToTextfile(cfg.MetricsFile); err != nil {
			logger.Errorf("не удалось записать метрики: %v", err)
		}
	}

	printSummary(&summary)
	return summary, nil
}

// say выводит строку, не ломая прогресс-бар.
func say(bar *progress.Bar, format string, args ...interface{}) {
	if bar != nil {
		bar.WriteMessage(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// printOutcome печатает результат одного файла. Успешные - только в подробном режиме.
func printOutcome(bar *progress.Bar, verbose bool, r *converter.Result) {
	switch r.Status {
	case converter.StatusSucceeded:
		if verbose {
			note := ""
			if r.Cached {
				note = dimStyle.Render(" (кэш)")
			}
			say(bar, "%s %s → %s %s%s\n", okStyle.Render("✅"), r.Source.RelPath, r.OutputPath,
				dimStyle.Render(fmt.Sprintf("%dx%d", r.Width, r.Height)), note)
		}
		for _, w := range r.Warnings {
			say(bar, "%s %s: %s\n", warnStyle.Render("⚠️ "), r.Source.RelPath, w)
		}
	case converter.StatusFailed:
		say(bar, "%s %s: %v\n", errStyle.Render("❌"), r.Source.RelPath, r.Err)
	case converter.StatusCancelled:
		if verbose {
			say(bar, "%s %s\n", dimStyle.Render("⏭  отменён"), r.Source.RelPath)
		}
	}
}

// printSummary печатает итог пачки.
func printSummary(s *worker.Summary) {
	fmt.Println()
	fmt.Println(titleStyle.Render("📊 Итого"))
	fmt.Printf("   Всего: %d\n", s.Total)
	fmt.Printf("   %s Успешно: %d\n", okStyle.Render("✅"), s.Succeeded)
	if s.Failed > 0 {
		fmt.Printf("   %s Ошибок: %d\n", errStyle.Render("❌"), s.Failed)
		kinds := make([]imgerr.Kind, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Printf("      %s: %d\n", dimStyle.Render(k.String()), s.ByKind[k])
		}
	}
	if s.Cancelled > 0 {
		fmt.Printf("   %s Отменено: %d\n", warnStyle.Render("⚠️ "), s.Cancelled)
	}
	if s.Warnings > 0 {
		fmt.Printf("   Предупреждений: %d\n", s.Warnings)
	}
	if s.Succeeded > 0 {
		fmt.Printf("   💾 %s → %s (%.1f%%)\n",
			worker.FormatBytes(s.InputBytes), worker.FormatBytes(s.OutputBytes), s.SavedPercent())
	}
	fmt.Printf("   ⏱  %s\n", s.Duration.Round(time.Millisecond))
}

// printParams печатает основные параметры пачки.
func printParams(cfg *config.Config) {
	conv := &cfg.Conversion
	line := fmt.Sprintf("⚙️  %s, качество %d, воркеров %d", conv.Format, conv.Quality, conv.Workers)
	if cfg.Preset != "" {
		line += ", профиль " + cfg.Preset
	}
	if conv.OutputDir != "" {
		line += " → " + conv.OutputDir
	}
	fmt.Println(dimStyle.Render(line))
}

// loadConfig собирает конфигурацию. Приоритет по возрастанию: значения по
// умолчанию, настройки из базы, YAML файл, встроенный профиль, именованный
// пресет, явно заданные флаги.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, *storage.Storage, error) {
	cfg := config.DefaultConfig()
	changed := cmd.Flags().Changed

	fc, fcPath, err := config.FindAndLoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	dbPath := cfg.DBPath
	if fc != nil && fc.Paths != nil && fc.Paths.DB != "" {
		dbPath = fc.Paths.DB
	}
	if changed("db") {
		dbPath = opts.db
	}
	store, err := storage.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	if !opts.noSettings {
		settings, err := store.Settings()
		if err != nil {
			logger.Warnf("не удалось прочитать настройки: %v", err)
		} else if bad := cfg.Conversion.ApplySettings(settings); len(bad) > 0 {
			logger.Warnf("пропущены нераспознанные настройки: %s", strings.Join(bad, ", "))
		}
	}

	if err := fc.ApplyToConfig(cfg); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if fcPath != "" {
		logger.Debugf("конфигурация: %s", fcPath)
	}
	cfg.DBPath = dbPath

	if changed("preset") {
		cfg.Preset = opts.preset
	}
	if cfg.Preset != "" && !cfg.Conversion.ApplyPreset(cfg.Preset) {
		_ = store.Close()
		return nil, nil, imgerr.Newf(imgerr.InvalidConfig, "apply preset",
			"неизвестный профиль %q, доступны: %s", cfg.Preset, strings.Join(config.ValidPresets(), ", "))
	}

	if opts.loadPreset != "" {
		pfc, path, err := config.LoadPreset(opts.loadPreset)
		if err == nil {
			err = pfc.ApplyToConfig(cfg)
		}
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ошибка загрузки пресета: %w", err)
		}
		logger.Debugf("пресет: %s", path)
	}

	if err := applyFlags(changed, opts, cfg); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return cfg, store, nil
}

// applyFlags переносит в конфигурацию явно заданные флаги.
func applyFlags(changed func(string) bool, opts *options, cfg *config.Config) error {
	conv := &cfg.Conversion

	if len(opts.inputs) > 0 {
		cfg.Inputs = opts.inputs
	}
	if changed("in-ext") {
		exts := make([]string, 0, len(opts.inExt))
		for _, e := range opts.inExt {
			exts = append(exts, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), ".")))
		}
		cfg.InputExtensions = exts
	}
	if changed("recursive") {
		cfg.Recursive = opts.recursive
	}

	if changed("out") {
		conv.OutputDir = opts.outDir
	}
	if changed("format") {
		f, err := codec.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		conv.Format = f
	}
	if changed("quality") {
		conv.Quality = opts.quality
	}
	if changed("optimize-png") {
		conv.OptimizePNG = opts.optimizePNG
	}
	if changed("webp-lossless") {
		conv.WebPLossless = opts.lossless
	}
	if changed("keep-tree") {
		conv.KeepTree = opts.keepTree
	}
	if changed("metadata") {
		conv.Metadata = config.MetadataPolicy(opts.metadata)
	}
	if changed("collision") {
		conv.Collision = config.CollisionPolicy(opts.collision)
	}

	if changed("width") || changed("height") || changed("scale") || changed("fit") {
		r := conv.Resize
		if changed("width") {
			r.Width = opts.width
		}
		if changed("height") {
			r.Height = opts.height
		}
		if changed("scale") {
			r.Scale = opts.scale
		}
		if changed("fit") {
			r.Fit = opts.fit
		}
		r.Enabled = r.Width > 0 || r.Height > 0 || r.Scale > 0
		conv.Resize = r
	}

	if changed("prefix") {
		conv.Naming.Prefix = opts.prefix
	}
	if changed("replace") {
		reps, err := parseReplacements(opts.replace)
		if err != nil {
			return err
		}
		conv.Naming.Replacements = reps
	}
	if changed("resolution-suffix") {
		conv.Naming.ResolutionSuffix = opts.resSuffix
	}

	if changed("workers") {
		conv.Workers = opts.workers
	}
	if changed("max-input-mb") {
		conv.MaxInputBytes = int64(opts.maxInputMB) << 20
	}
	if changed("max-memory-mb") {
		conv.MaxMemoryMB = opts.maxMemoryMB
	}
	if changed("cache") {
		conv.Cache = opts.cache
	}
	if changed("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}

	if changed("dataset-log") {
		cfg.DatasetLog = opts.datasetLog
	}
	if changed("numbering") {
		cfg.DatasetNumbering = opts.numbering
	}
	if changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if changed("no-progress") {
		cfg.NoProgress = opts.noProgress
	}
	if changed("watch") {
		cfg.Watch = opts.watch
	}
	return nil
}

// parseReplacements разбирает значения --replace вида FIND=REPLACE.
func parseReplacements(values []string) ([]config.Replacement, error) {
	reps := make([]config.Replacement, 0, len(values))
	for _, v := range values {
		find, repl, ok := strings.Cut(v, "=")
		if !ok || find == "" {
			return nil, imgerr.Newf(imgerr.InvalidConfig, "parse replace",
				"ожидается FIND=REPLACE, получено %q", v)
		}
		reps = append(reps, config.Replacement{Find: find, Replace: repl})
	}
	return reps, nil
}

// saveRequested сохраняет пресет и настройки, если это запрошено флагами.
func saveRequested(opts *options, cfg *config.Config, store *storage.Storage) (bool, error) {
	saved := false
	if opts.savePreset != "" {
		path, err := config.SavePreset(opts.savePreset, cfg)
		if err != nil {
			return false, err
		}
		fmt.Printf("💾 Пресет %q сохранён: %s\n", opts.savePreset, path)
		saved = true
	}
	if opts.saveSetting {
		if err := cfg.Conversion.Validate(); err != nil {
			return false, err
		}
		if err := store.SaveSettings(cfg.Conversion.ToSettings()); err != nil {
			return false, fmt.Errorf("не удалось сохранить настройки: %w", err)
		}
		fmt.Println("💾 Настройки сохранены")
		saved = true
	}
	return saved, nil
}

// setupLogger настраивает вывод и уровень лога.
func setupLogger(cmd *cobra.Command, cfg *config.Config) error {
	if err := logger.Init(cfg.LogFile, true); err != nil {
		return err
	}
	name := cfg.LogLevel
	if cfg.Verbose && !cmd.Flags().Changed("log-level") {
		name = "info"
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return imgerr.New(imgerr.InvalidConfig, "parse log level", err)
	}
	logger.SetLevel(level)
	return nil
}
