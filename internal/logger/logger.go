// Package logger - уровневый логгер движка конвертации.
// Консольный вывод окрашивается, файловый пишется без цветов.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// ANSI цвета префиксов
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Level - минимальный уровень сообщений.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String возвращает имя уровня.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel разбирает имя уровня (debug, info, warn, error).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования: %q", s)
}

type sink struct {
	out     io.Writer
	loggers [4]*log.Logger
}

// Logger пишет сообщения в консоль и/или файл.
type Logger struct {
	console  *sink
	file     *sink
	handle   *os.File
	minLevel Level
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

// ensureInitialized создаёт логгер по умолчанию: stderr, уровень WARN.
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = &Logger{console: newSink(os.Stderr, true), minLevel: WARN}
		}
	})
}

// Init настраивает вывод. Пустое имя файла - только консоль,
// console=false - только файл.
func Init(filename string, console bool) error {
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()

	level := WARN
	if defaultLogger != nil {
		level = defaultLogger.minLevel
		if defaultLogger.handle != nil {
			_ = defaultLogger.handle.Close()
		}
	}

	l := &Logger{minLevel: level}
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("не удалось открыть файл лога: %w", err)
		}
		l.handle = f
		l.file = newSink(f, false)
	}
	if console {
		l.console = newSink(os.Stderr, true)
	}
	if l.console == nil && l.file == nil {
		return fmt.Errorf("не задан ни один вывод для лога")
	}

	defaultLogger = l
	return nil
}

// SetOutput направляет консольный вывод в w без цветов. Используется в тестах.
func SetOutput(w io.Writer) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.console = newSink(w, false)
}

// SetLevel задаёт минимальный уровень.
func SetLevel(level Level) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

// Close закрывает файл лога, если он открыт.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil && defaultLogger.handle != nil {
		_ = defaultLogger.handle.Close()
		defaultLogger.handle = nil
		defaultLogger.file = nil
	}
}

func newSink(w io.Writer, colored bool) *sink {
	flags := log.Ldate | log.Ltime
	prefixes := [4]string{"[DEBUG] ", "[INFO]  ", "[WARN]  ", "[ERROR] "}
	colors := [4]string{colorGray, colorReset, colorYellow, colorRed}

	s := &sink{out: w}
	for i, p := range prefixes {
		if colored {
			p = colors[i] + p + colorReset
		}
		s.loggers[i] = log.New(w, p, flags)
	}
	return s
}

func output(level Level, msg string) {
	ensureInitialized()
	mu.Lock()
	l := defaultLogger
	mu.Unlock()

	if level < l.minLevel {
		return
	}
	if l.console != nil {
		_ = l.console.loggers[level].Output(3, msg)
	}
	if l.file != nil {
		_ = l.file.loggers[level].Output(3, msg)
	}
}

// Debugf пишет отладочное сообщение.
func Debugf(format string, v ...interface{}) {
	output(DEBUG, fmt.Sprintf(format, v...))
}

// Infof пишет информационное сообщение.
func Infof(format string, v ...interface{}) {
	output(INFO, fmt.Sprintf(format, v...))
}

// Warnf пишет предупреждение.
func Warnf(format string, v ...interface{}) {
	output(WARN, fmt.Sprintf(format, v...))
}

// Errorf пишет сообщение об ошибке.
func Errorf(format string, v ...interface{}) {
	output(ERROR, fmt.Sprintf(format, v...))
}
