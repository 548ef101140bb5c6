package logger

import (
	"os"

	"taskagent/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*zap.SugaredLogger
}

func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{l.SugaredLogger.With(args...)}
}

func NewLogger(cfg config.LogConfig) *Logger {
	writeSyncer := getLogWriter(cfg)
	encoder := getEncoder(cfg.Format)

	var logLevel zapcore.Level
	if err := logLevel.Set(cfg.Level); err != nil {
		logLevel = zap.InfoLevel
	}

	core := zapcore.NewCore(encoder, writeSyncer, logLevel)
	return &Logger{zap.New(core, zap.AddCaller()).Sugar()}
}

func getEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder

	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return zapcore.NewJSONEncoder(encoderConfig)
	}
}

func getLogWriter(cfg config.LogConfig) zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return zapcore.AddSync(os.Stderr)
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: 5,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
		LocalTime:  true,
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(lumberJackLogger)}
	if cfg.ShowConsole {
		syncers = append(syncers, zapcore.AddSync(os.Stderr))
	}
	return zapcore.NewMultiWriteSyncer(syncers...)
}

var defaultLogger *Logger

func InitLogger() {
	defaultLogger = NewLogger(config.GetConfig().LogConfig)
}

func GetLogger() *Logger {
	return defaultLogger
}

func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

func Info(args ...interface{}) {
	defaultLogger.Info(args...)
}

func Error(args ...interface{}) {
	defaultLogger.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}
