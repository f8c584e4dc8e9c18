package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the sugared zap logger used across the server.
// Development encoding keeps local/server logs readable, with colored
// levels matching the rest of the CLI output.
func NewLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zapLogger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}
	defer zapLogger.Sync()

	return zapLogger.Sugar()
}
