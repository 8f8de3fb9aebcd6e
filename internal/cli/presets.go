package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artemshloyda/imageconverter/internal/config"
)

// newPresetsCmd создаёт команду для управления пресетами.
func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Встроенные профили и именованные пресеты",
		Long: `Встроенные профили (--preset) и именованные пресеты (--load-preset).

Именованные пресеты хранятся в ~/.config/imageconverter/presets/ и
описывают, как конвертировать: формат, размер, имена, политики.

Примеры:
  # Сохранить параметры как пресет
  imageconverter -f webp --width 1200 --prefix web_ --save-preset blog

  # Конвертировать с пресетом
  imageconverter ./photos --load-preset blog

  # Список профилей и пресетов
  imageconverter presets list

  # Удалить пресет
  imageconverter presets delete blog`,
	}

	cmd.AddCommand(newPresetsListCmd())
	cmd.AddCommand(newPresetsShowCmd())
	cmd.AddCommand(newPresetsDeleteCmd())

	return cmd
}

// newPresetsListCmd создаёт команду для списка пресетов.
func newPresetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать профили и сохранённые пресеты",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(titleStyle.Render("🎛  Встроенные профили"))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tФОРМАТ\tКАЧЕСТВО\tРАМКА\tEXIF")
			for _, name := range config.ValidPresets() {
				p := config.Presets[config.Preset(name)]
				box := "-"
				if p.MaxWidth > 0 || p.MaxHeight > 0 {
					box = fmt.Sprintf("%dx%d", p.MaxWidth, p.MaxHeight)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", name, p.Format, p.Quality, box, p.Metadata)
			}
			_ = w.Flush()
			fmt.Println()

			presets, err := config.ListPresets()
			if err != nil {
				return fmt.Errorf("ошибка получения списка пресетов: %w", err)
			}
			if len(presets) == 0 {
				fmt.Println(dimStyle.Render("Сохранённых пресетов нет. Сохранить: imageconverter ... --save-preset NAME"))
				return nil
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("📦 Сохранённые пресеты (%d)", len(presets))))
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tФОРМАТ\tКАЧЕСТВО\tПУТЬ")
			for _, p := range presets {
				if p.Err != nil {
					fmt.Fprintf(w, "%s\t%s\t-\t%s\n", p.Name, errStyle.Render("ошибка"), p.Path)
					continue
				}
				format, quality := "-", "-"
				if out := p.Config.Output; out != nil {
					if out.Format != "" {
						format = out.Format
					}
					if out.Quality != nil {
						quality = fmt.Sprint(*out.Quality)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, format, quality, p.Path)
			}
			return w.Flush()
		},
	}
}

// newPresetsShowCmd создаёт команду для отображения пресета.
func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Показать содержимое пресета",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, path, err := config.LoadPreset(args[0])
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(fc)
			if err != nil {
				return fmt.Errorf("не удалось сериализовать пресет: %w", err)
			}
			fmt.Printf("📦 Пресет: %s\n", args[0])
			fmt.Printf("📁 Путь: %s\n\n", path)
			fmt.Print(string(data))
			return nil
		},
	}
}

// newPresetsDeleteCmd создаёт команду для удаления пресета.
func newPresetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Удалить пресет",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeletePreset(args[0]); err != nil {
				return fmt.Errorf("ошибка удаления пресета: %w", err)
			}
			fmt.Printf("✅ Пресет '%s' удалён\n", args[0])
			return nil
		},
	}
}

/*
Возможные расширения:
- Команда 'presets export' для экспорта в файл
- Команда 'presets copy' для копирования пресета
*/
