// Package imgerr содержит таксономию ошибок конвертации.
package imgerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind определяет категорию ошибки.
type Kind int

const (
	// Unknown - ошибка без категории.
	Unknown Kind = iota
	// InvalidConfig - некорректная конфигурация пачки, пачка не запускается.
	InvalidConfig
	// UnsupportedFormat - формат источника не распознан или не декодируется.
	UnsupportedFormat
	// UnsupportedEncode - целевой формат не поддерживает кодирование.
	UnsupportedEncode
	// EncodeFailure - кодек не смог закодировать изображение.
	EncodeFailure
	// CorruptData - формат распознан, но пиксельные данные повреждены.
	CorruptData
	// ProfileParse - встроенный ICC профиль не разобран (не фатально).
	ProfileParse
	// DestinationExists - выходной файл уже существует.
	DestinationExists
	// IOFailure - ошибка чтения или записи.
	IOFailure
	// Cancelled - пачка отменена до завершения задачи.
	Cancelled
)

var kindNames = map[Kind]string{
	Unknown:           "Unknown",
	InvalidConfig:     "InvalidConfig",
	UnsupportedFormat: "UnsupportedFormat",
	UnsupportedEncode: "UnsupportedEncode",
	EncodeFailure:     "EncodeFailure",
	CorruptData:       "CorruptData",
	ProfileParse:      "ProfileParseError",
	DestinationExists: "DestinationExists",
	IOFailure:         "IOFailure",
	Cancelled:         "Cancelled",
}

// String возвращает имя категории.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error - ошибка с категорией, операцией и путём к файлу.
type Error struct {
	// Kind - категория ошибки.
	Kind Kind

	// Op - операция, на которой произошла ошибка (decode, encode, write...).
	Op string

	// Path - путь к файлу (может быть пустым).
	Path string

	// Err - исходная ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap возвращает исходную ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку указанной категории.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf создаёт ошибку с форматированным сообщением.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithPath возвращает копию ошибки с заполненным путём.
func WithPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Path = path
		return &cp
	}
	return err
}

// KindOf возвращает категорию ошибки.
// context.Canceled и context.DeadlineExceeded считаются отменой.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return Unknown
}

// Is проверяет, относится ли ошибка к категории.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
