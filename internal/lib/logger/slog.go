package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New создаёт и настраивает новый экземпляр slog.Logger, пишущий в stdout
// уровень логирования и формат ("text" или "json") задаются строками из конфига
func New(levelStr, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, levelStr, format)
}

// NewWithWriter то же самое, но с произвольным приёмником (удобно в тестах)
func NewWithWriter(w io.Writer, levelStr, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true, // нужно, чтобы видеть файл и строку, откуда был вызов лога
		Level:     parseLevel(levelStr),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard возвращает логгер, который ничего не пишет
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(levelStr string) slog.Level {
	// преобразуем строковый уровень из конфига в slog.Level
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		// по умолчанию используем INFO, если в конфиге указано что-то некорректное
		return slog.LevelInfo
	}
}
