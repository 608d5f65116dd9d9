package core

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel = log.Level

const (
	DebugLevel LogLevel = log.DebugLevel
	InfoLevel  LogLevel = log.InfoLevel
	WarnLevel  LogLevel = log.WarnLevel
	ErrorLevel LogLevel = log.ErrorLevel
	FatalLevel LogLevel = log.FatalLevel
)

var once sync.Once

type logger struct {
	*log.Logger
	file *lumberjack.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Lumen 💡 ",
			})
			l.SetLevel(log.InfoLevel)
			l.SetCallerOffset(1)
			singleton = &logger{Logger: l}
		})
	return singleton
}

// ParseLogLevel maps a config string onto a level. Unknown strings yield InfoLevel and an error.
func ParseLogLevel(level string) (LogLevel, error) {
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

func SetLogLevel(level LogLevel) {
	getLogger().SetLevel(level)
}

func GetLogLevel() LogLevel {
	return getLogger().GetLevel()
}

// SetLogFile mirrors the log output into a size-rotated file. An empty path
// restores stderr-only output.
func SetLogFile(path string, maxSizeMB int) {
	l := getLogger()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if path == "" {
		l.SetOutput(os.Stderr)
		return
	}
	l.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 1,
	}
	l.SetOutput(io.MultiWriter(os.Stderr, l.file))
}

// SetLogOutput replaces the writer entirely, mostly useful in tests.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
