package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/imageconverter/internal/cache"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/storage"
	"github.com/artemshloyda/imageconverter/internal/worker"
)

// newSettingsCmd создаёт команду для сохранённых в базе параметров.
func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Параметры конвертации, сохранённые в базе",
		Long: `Сохранённые параметры применяются к каждому запуску до YAML файла и флагов.

Примеры:
  imageconverter settings show
  imageconverter settings save format=webp quality=80
  imageconverter settings reset`,
	}

	withStore := func(fn func(store *storage.Storage) error) error {
		store, err := storage.New(opts.db)
		if err != nil {
			return fmt.Errorf("не удалось открыть БД: %w", err)
		}
		defer func() { _ = store.Close() }()
		return fn(store)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Показать сохранённые параметры",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *storage.Storage) error {
				values, err := store.Settings()
				if err != nil {
					return err
				}
				if len(values) == 0 {
					fmt.Println("Сохранённых параметров нет.")
					return nil
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, k := range keys {
					fmt.Fprintf(w, "%s\t%s\n", k, values[k])
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save key=value...",
		Short: "Изменить отдельные параметры",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *storage.Storage) error {
				current, err := store.Settings()
				if err != nil {
					return err
				}
				conv := config.DefaultConversion()
				conv.ApplySettings(current)

				update := make(map[string]string, len(args))
				for _, a := range args {
					k, v, ok := strings.Cut(a, "=")
					if !ok {
						return fmt.Errorf("ожидается key=value, получено %q", a)
					}
					update[strings.TrimSpace(k)] = v
				}
				if bad := conv.ApplySettings(update); len(bad) > 0 {
					return fmt.Errorf("нераспознанные значения: %s", strings.Join(bad, ", "))
				}
				if err := conv.Validate(); err != nil {
					return err
				}
				if err := store.SaveSettings(conv.ToSettings()); err != nil {
					return err
				}
				fmt.Println("✅ Настройки сохранены")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Удалить сохранённые параметры",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *storage.Storage) error {
				if err := store.ResetSettings(); err != nil {
					return err
				}
				fmt.Println("🧹 Настройки сброшены")
				return nil
			})
		},
	})

	return cmd
}

// newConfigCmd создаёт команду для работы с YAML конфигурацией.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "YAML конфигурация",
	}

	var output string
	example := &cobra.Command{
		Use:   "example",
		Short: "Вывести пример конфигурации",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := config.GenerateExampleConfig()
			if output == "" {
				fmt.Print(text)
				return nil
			}
			if err := os.WriteFile(output, []byte(text), 0644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", output, err)
			}
			fmt.Printf("✅ Пример записан в %s\n", output)
			return nil
		},
	}
	example.Flags().StringVarP(&output, "output", "o", "", "Записать в файл")

	cmd.AddCommand(example)
	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "Где ищется конфигурация",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.DefaultConfigPaths() {
				mark := dimStyle.Render("-")
				if _, err := os.Stat(p); err == nil {
					mark = okStyle.Render("✓")
				}
				fmt.Printf("%s %s\n", mark, p)
			}
		},
	})
	return cmd
}

// newCacheCmd создаёт команду для управления кэшем результатов.
func newCacheCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Кэш результатов конвертации",
	}
	cmd.PersistentFlags().StringVar(&dir, "cache-dir", config.DefaultCacheDir(), "Директория кэша")

	withCache := func(fn func(c *cache.Cache) error) error {
		c, err := cache.Open(dir)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		return fn(c)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Размер кэша",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache) error {
				n, size, err := c.Stats()
				if err != nil {
					return err
				}
				fmt.Printf("🗄  %s: записей %d, %s\n", c.Dir(), n, worker.FormatBytes(size))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Очистить кэш",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache) error {
				n, err := c.Clear()
				if err != nil {
					return err
				}
				fmt.Printf("🧹 Удалено записей: %d\n", n)
				return nil
			})
		},
	})

	var maxAge time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Удалить старые записи",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache) error {
				n, err := c.Prune(maxAge)
				if err != nil {
					return err
				}
				fmt.Printf("🧹 Удалено записей старше %s: %d\n", maxAge, n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&maxAge, "older-than", 30*24*time.Hour, "Максимальный возраст записи")
	cmd.AddCommand(prune)

	return cmd
}
