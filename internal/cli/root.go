// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/storage"
	"github.com/artemshloyda/imageconverter/internal/worker"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// options - значения флагов. В конфигурацию попадают только явно заданные.
type options struct {
	inputs      []string
	outDir      string
	format      string
	quality     int
	width       int
	height      int
	scale       float64
	fit         bool
	optimizePNG bool
	lossless    bool
	prefix      string
	replace     []string
	resSuffix   bool
	keepTree    bool
	metadata    string
	collision   string
	workers     int
	maxInputMB  int
	maxMemoryMB int
	cache       bool
	cacheDir    string
	inExt       []string
	recursive   bool
	db          string
	configPath  string
	preset      string
	loadPreset  string
	savePreset  string
	saveSetting bool
	noSettings  bool
	datasetLog  bool
	numbering   bool
	metricsFile string
	logFile     string
	logLevel    string
	verbose     bool
	noProgress  bool
	watch       bool
}

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	def := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "imageconverter [файлы и директории...]",
		Short: "Пакетная конвертация изображений JPEG, PNG, WebP и HEIC",
		Long: `ImageConverter - CLI утилита для пакетной конвертации изображений.

Читает JPEG, PNG, WebP и HEIC, приводит цвета к sRGB по встроенному ICC профилю,
меняет размер, переименовывает по правилам и пишет JPEG, PNG или WebP.
Один сбойный файл не останавливает пачку.

Примеры:
  # Конвертировать директорию в WebP
  imageconverter ./photos --out ./converted --format webp

  # PNG с суффиксом разрешения и префиксом
  imageconverter ./photos -f png --width 800 --prefix conv_ --replace IMG=photo --resolution-suffix

  # Профиль для веба и список созданных файлов
  imageconverter ./photos --preset web --dataset-log --numbering

  # Следить за директорией и конвертировать новые файлы
  imageconverter ./inbox --out ./converted --watch`,
		Args: cobra.ArbitraryArgs,
		RunE:func(cmd *cobra.Command, args []string) error {
			opts.inputs = append(opts.inputs, args...)
			return runConvert(cmd, opts)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()

	// Вход
	flags.StringSliceVar(&opts.inputs, "in", nil, "Файлы или директории (можно позиционными аргументами)")
	flags.StringSliceVar(&opts.inExt, "in-ext", def.InputExtensions, "Расширения файлов из директорий")
	flags.BoolVarP(&opts.recursive, "recursive", "r", def.Recursive, "Обходить поддиректории")

	// Выход
	flags.StringVarP(&opts.outDir, "out", "o", "", "Выходная директория (по умолчанию рядом с исходником)")
	flags.StringVarP(&opts.format, "format", "f", def.Conversion.Format.String(), "Выходной формат: jpg, png, webp")
	flags.IntVarP(&opts.quality, "quality", "q", def.Conversion.Quality, "Качество для lossy форматов (0-100)")
	flags.BoolVar(&opts.optimizePNG, "optimize-png", false, "PNG: палитра и максимальное сжатие")
	flags.BoolVar(&opts.lossless, "webp-lossless", false, "WebP без потерь")
	flags.BoolVar(&opts.keepTree, "keep-tree", def.Conversion.KeepTree, "Сохранять структуру директорий в --out")
	flags.StringVar(&opts.metadata, "metadata", string(def.Conversion.Metadata), "EXIF: strip или preserve (только JPEG -> JPEG)")
	flags.StringVar(&opts.collision, "collision", string(def.Conversion.Collision), "Существующий файл: fail или overwrite")

	// Размер
	flags.IntVar(&opts.width, "width", 0, "Ширина (одна сторона - вторая по пропорции)")
	flags.IntVar(&opts.height, "height", 0, "Высота")
	flags.Float64Var(&opts.scale, "scale", 0, "Коэффициент масштабирования")
	flags.BoolVar(&opts.fit, "fit", false, "Вписать в рамку --width x --height без увеличения")

	// Имя файла
	flags.StringVar(&opts.prefix, "prefix", "", "Префикс имени файла")
	flags.StringArrayVar(&opts.replace, "replace", nil, "Замена в имени FIND=REPLACE (можно несколько, по порядку)")
	flags.BoolVar(&opts.resSuffix, "resolution-suffix", false, "Добавить суффикс _WxH")

	// Производительность
	flags.IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Количество параллельных воркеров")
	flags.IntVar(&opts.maxInputMB, "max-input-mb", int(config.DefaultMaxInputBytes>>20), "Максимальный размер входного файла, МБ")
	flags.IntVar(&opts.maxMemoryMB, "max-memory-mb", 0, "Ограничение памяти на декодирование, МБ (0 = без ограничения)")
	flags.BoolVar(&opts.cache, "cache", false, "Кэшировать результаты по содержимому исходника")
	flags.StringVar(&opts.cacheDir, "cache-dir", def.CacheDir, "Директория кэша")

	// Конфигурация
	flags.StringVarP(&opts.configPath, "config", "c", "", "Файл конфигурации YAML")
	flags.StringVarP(&opts.preset, "preset", "p", "", fmt.Sprintf("Встроенный профиль: %v", config.ValidPresets()))
	flags.StringVar(&opts.loadPreset, "load-preset", "", "Загрузить именованный пресет")
	flags.StringVar(&opts.savePreset, "save-preset", "", "Сохранить параметры как именованный пресет")
	flags.BoolVar(&opts.saveSetting, "save-settings", false, "Запомнить параметры конвертации в базе")
	flags.BoolVar(&opts.noSettings, "no-settings", false, "Не применять сохранённые в базе параметры")

	// Отчёты
	flags.BoolVar(&opts.datasetLog, "dataset-log", false, "Записать dataset_log.txt со списком созданных файлов")
	flags.BoolVar(&opts.numbering, "numbering", false, "Нумеровать строки dataset_log.txt")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Записать метрики Prometheus в файл")

	// Режим работы и вывод
	flags.BoolVar(&opts.watch, "watch", false, "Следить за входными директориями")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Отключить прогресс-бар")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Подробный вывод")
	flags.StringVar(&opts.logFile, "log-file", "", "Файл лога")
	flags.StringVar(&opts.logLevel, "log-level", def.LogLevel, "Уровень лога: debug, info, warn, error")

	rootCmd.PersistentFlags().StringVar(&opts.db, "db", def.DBPath, "Путь к SQLite базе (настройки и история)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}

// newVersionCmd создаёт команду version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imageconverter %s (built %s, %s)\n", Version, BuildTime, runtime.Version())
			fmt.Printf("Кодирование: ")
			for _, f := range codec.Formats() {
				if f.Capabilities().Encode {
					fmt.Printf("%s ", f)
				}
			}
			fmt.Println()
		},
	}
}

// newStatsCmd создаёт команду stats.
func newStatsCmd(opts *options) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику из истории конвертаций",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(opts.db)
			if err != nil {
				return fmt.Errorf("не удалось открыть БД: %w", err)
			}
			defer func() { _ = store.Close() }()

			st, err := store.GetStats()
			if err != nil {
				return fmt.Errorf("не удалось получить статистику: %w", err)
			}

			fmt.Println(titleStyle.Render("📊 Статистика"))
			fmt.Printf("   Пачек: %d (прервано: %d)\n", st.Batches, st.Interrupted)
			fmt.Printf("   Файлов: %d\n", st.Jobs)
			fmt.Printf("   Успешно: %s\n", okStyle.Render(fmt.Sprint(st.Succeeded)))
			fmt.Printf("   Ошибок: %s\n", errStyle.Render(fmt.Sprint(st.Failed)))
			fmt.Printf("   Отменено: %s\n", warnStyle.Render(fmt.Sprint(st.Cancelled)))
			fmt.Printf("   Прочитано: %s, записано: %s\n",
				worker.FormatBytes(st.BytesRead), worker.FormatBytes(st.BytesWritten))
			kinds := make([]string, 0, len(st.ByErrorKind))
			for kind := range st.ByErrorKind {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Printf("   %s: %d\n", dimStyle.Render(kind), st.ByErrorKind[kind])
			}

			if last <= 0 {
				return nil
			}
			batches, err := store.RecentBatches(last)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(titleStyle.Render("🕘 Последние пачки"))
			for _, b := range batches {
				fmt.Printf("   %s  %s  %-11s %d/%d/%d из %d\n",
					b.StartedAt.Format("2006-01-02 15:04"), dimStyle.Render(b.ID[:8]), b.Status,
					b.Succeeded, b.Failed, b.Cancelled, b.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 5, "Показать последние N пачек")
	return cmd
}

// Execute запускает CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// Не выводим ошибку, cobra уже вывела
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Команда retry для повторной обработки failed из истории
- Экспорт истории в JSON
*/
