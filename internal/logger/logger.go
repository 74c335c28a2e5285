package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"courier/internal/config"
)

// log levels in increasing severity
const (
	LevelDebug = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var (
	currentLevel int32 = LevelInfo
	out          *log.Logger
)

func init() {
	// usable before Setup; Setup replaces the writer with the rotating one
	out = log.New(os.Stdout, "", 0)
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// createMultiWriter creates a writer that outputs to both stdout and log file
func createMultiWriter(rotatingLogger io.Writer) io.Writer {
	return io.MultiWriter(os.Stdout, rotatingLogger)
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "courier")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)
	multiWriter := createMultiWriter(rotatingLogger)

	out = log.New(multiWriter, "", 0)
	atomic.StoreInt32(&currentLevel, parseLevel(cfg.Logger.Level))

	// Route the standard logger through the same writer
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

// GetRotatingLogWriter returns a rotating log writer for custom loggers
func GetRotatingLogWriter(cfg *config.Config, prefix string) io.Writer {
	logFilePath := createLogFilePath(cfg.Logger.Directory, prefix)
	rotatingLogger := createRotatingLogger(logFilePath, cfg)
	return createMultiWriter(rotatingLogger)
}

func parseLevel(level string) int32 {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func logf(level int32, tag, format string, args ...interface{}) {
	if level < atomic.LoadInt32(&currentLevel) {
		return
	}
	timestamp := time.Now().Format("2006/01/02 15:04:05")
	out.Printf("[%s] %s %s", tag, timestamp, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	logf(LevelDebug, "DEBUG", format, args...)
}

func Infof(format string, args ...interface{}) {
	logf(LevelInfo, "INFO", format, args...)
}

func Warningf(format string, args ...interface{}) {
	logf(LevelWarning, "WARNING", format, args...)
}

func Errorf(format string, args ...interface{}) {
	logf(LevelError, "ERROR", format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logf(LevelFatal, "FATAL", format, args...)
	os.Exit(1)
}
