package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogLevel은 기본 로그 레벨입니다.
var DefaultLogLevel = zapcore.InfoLevel

// ParseLogLevel은 debug, info, warn, error 중 하나를 zap 레벨로 변환합니다.
// 알 수 없는 값은 DefaultLogLevel이 됩니다.
func ParseLogLevel(s string) zapcore.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return DefaultLogLevel
	}
}

// NewLogger는 지정된 레벨의 개발용 로거를 생성합니다.
func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLogLevel(level))
	return config.Build()
}
