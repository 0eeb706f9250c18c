package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *logrus.Logger

// SetupLogger inicializa o logger global da aplicação. Deve ser chamado uma vez no início.
func SetupLogger(cfg *core.Config) error {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		fmt.Fprintf(os.Stderr, "Nível de log inválido '%s', usando INFO: %v\n", cfg.LogLevel, err)
	}
	l.SetLevel(level)

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	logFilePath := filepath.Join(cfg.LogDir, strings.ToLower(strings.ReplaceAll(cfg.AppName, " ", "_"))+".log")
	if err := os.MkdirAll(cfg.LogDir, os.ModePerm); err != nil {
		return fmt.Errorf("falha ao criar diretório de log '%s': %w", cfg.LogDir, err)
	}

	fileLogger := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    max(cfg.LogMaxBytes/(1024*1024), 1), // megabytes
		MaxBackups: cfg.LogBackupCount,
		MaxAge:     28, // dias
		Compress:   true,
	}

	writers := []io.Writer{fileLogger}
	if cfg.LogToConsole {
		writers = append(writers, os.Stderr)
	}
	l.SetOutput(io.MultiWriter(writers...))

	log = l
	log.Infof("Logger configurado. Nível: %s. Arquivo: %s", level.String(), logFilePath)
	return nil
}

// SetOutput redireciona o logger global para w (usado em testes).
func SetOutput(w io.Writer, level logrus.Level) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	log = l
}

func get() *logrus.Logger {
	if log == nil {
		// Logger ainda não configurado: escreve em stderr no formato texto.
		log = logrus.New()
	}
	return log
}

func Debug(args ...interface{}) { get().Debug(args...) }

func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }

func Info(args ...interface{}) { get().Info(args...) }

func Infof(format string, args ...interface{}) { get().Infof(format, args...) }

func Warn(args ...interface{}) { get().Warn(args...) }

func Warnf(format string, args ...interface{}) { get().Warnf(format, args...) }

func Error(args ...interface{}) { get().Error(args...) }

func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

func Fatal(args ...interface{}) { get().Fatal(args...) }

func Fatalf(format string, args ...interface{}) { get().Fatalf(format, args...) }

// WithFields retorna uma entry para log estruturado com contexto.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return get().WithFields(fields)
}

// Writer expõe o logger como io.Writer (ex: para o logger do GORM).
func Writer() *logrus.Logger {
	return get()
}
