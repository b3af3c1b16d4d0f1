package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Service string
	Level   string
	// File пустой: только stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New собирает zap-логгер: json в stdout и, если задан File, ротация через lumberjack.
func New(conf Config) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), atom),
	}
	if conf.File != "" {
		maxSize := conf.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator := &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    maxSize,
			MaxBackups: conf.MaxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), atom))
	}

	service := conf.Service
	if service == "" {
		service = "default"
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(zap.String("service", service)), nil
}
