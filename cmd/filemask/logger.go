package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogMaxSize = 10 // MB

// newLogger writes to stderr and, when s.LogFile is set, to a rotated file.
// Verbose forces the debug level.
func newLogger(s *settings) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := s.LogLevel
	if s.Verbose {
		name = "debug"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", name)
	}

	outputs := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if s.LogFile != "" {
		fl, err := initFileLog(s.LogFile, s.LogMaxSize)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, zapcore.AddSync(fl))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zap.CombineWriteSyncers(outputs...), level)
	return zap.New(core), nil
}

func initFileLog(path string, maxSize int) (*lumberjack.Logger, error) {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return nil, errors.Newf("can't use directory %s as log file", path)
	}
	if maxSize <= 0 {
		maxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: 3,
		LocalTime:  true,
	}, nil
}
