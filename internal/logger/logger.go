// Package logger는 구조화된 로깅을 제공합니다.
// 기본 출력은 JSON이며, 개발 시에는 text(콘솔) 포맷을 사용할 수 있습니다.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insajin/autopus-mainboard/internal/config"
)

// Setup은 전역 로거를 초기화합니다.
// 로그 파일을 열지 못하면 stdout을 사용하고, 열린 파일을 닫는 io.Closer를 반환합니다.
func Setup(cfg config.LoggingConfig) io.Closer {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter는 기본 출력 대상을 지정해 전역 로거를 초기화합니다.
func SetupWithWriter(cfg config.LoggingConfig, stdout io.Writer) io.Closer {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	// 타임스탬프 포맷 설정 (RFC3339)
	zerolog.TimeFieldFormat = time.RFC3339

	var output = stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.File).Msg("로그 파일을 열 수 없어 stdout을 사용합니다")
		} else {
			output = file
			closer = file
		}
	}

	if cfg.Format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseLevel은 문자열 레벨을 zerolog.Level로 변환합니다.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug는 디버그 레벨 로그를 기록합니다.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info는 정보 레벨 로그를 기록합니다.
func Info() *zerolog.Event {
	return log.Info()
}

// Warn은 경고 레벨 로그를 기록합니다.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error는 오류 레벨 로그를 기록합니다.
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal은 치명적 오류 레벨 로그를 기록하고 프로그램을 종료합니다.
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// Component는 component 필드를 붙인 로거를 반환합니다.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// WithLibrary는 라이브러리 경로를 붙인 로거를 반환합니다.
func WithLibrary(path string) zerolog.Logger {
	return log.With().Str("library", path).Logger()
}
