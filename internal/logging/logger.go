package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger пишет в консоль и в файл с независимыми порогами уровней
type Logger struct {
	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File
	consoleLevel  LogLevel
	fileLevel     LogLevel
	mu            sync.Mutex
}

// Глобальный экземпляр логгера
var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitDefaultLogger инициализирует систему логирования для указанного компонента.
// Файлы логов складываются в logs/ с временной меткой в имени.
func InitDefaultLogger(component string) error {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return fmt.Errorf("ошибка создания директории logs: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	logger := &Logger{
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:    log.New(file, "", log.LstdFlags),
		file:          file,
		consoleLevel:  INFO, // В консоль только INFO и выше
		fileLevel:     TRACE,
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	return nil
}

// CloseDefaultLogger закрывает систему логирования
func CloseDefaultLogger() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil && globalLogger.file != nil {
		globalLogger.file.Close()
	}
	globalLogger = nil
}

// SetConsoleLevel задаёт порог вывода в консоль
func SetConsoleLevel(level LogLevel) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger == nil {
		return
	}

	logger.mu.Lock()
	logger.consoleLevel = level
	logger.mu.Unlock()
}

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) {
	logMessage(TRACE, format, args...)
}

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// logMessage внутренняя функция для логирования.
// До инициализации логгера сообщения молча отбрасываются —
// путь правок не должен падать из-за отсутствующего логгера.
func logMessage(level LogLevel, format string, args ...interface{}) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger == nil {
		return
	}

	message := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, args...))

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if level >= logger.fileLevel {
		logger.fileLogger.Println(message)
	}
	if level >= logger.consoleLevel {
		logger.consoleLogger.Println(message)
	}
}
