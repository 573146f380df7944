package utils

import (
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware는 패닉을 복구하고 핸들러가 기록한 에러를 응답으로 변환합니다.
func ErrorHandlerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = WithErrorHolder(r)

			// 패닉 복구
			defer func() {
				if err := recover(); err != nil {
					logger.Error("HTTP handler panic",
						zap.Any("error", err),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("ip", r.RemoteAddr),
					)
					WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
						Error: http.StatusText(http.StatusInternalServerError),
						Code:  http.StatusInternalServerError,
					})
				}
			}()

			next.ServeHTTP(w, r)

			// 에러 컨텍스트 확인
			if errCtx := GetErrorContext(r.Context()); errCtx != nil {
				level := zap.WarnLevel
				if errCtx.Code >= http.StatusInternalServerError {
					level = zap.ErrorLevel
				}
				logger.Check(level, "Request error").Write(
					zap.Error(errCtx.Error),
					zap.Int("code", errCtx.Code),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("requestID", errCtx.RequestID),
				)
				WriteError(w, r)
			}
		})
	}
}

// RequestIDMiddleware는 요청 ID를 생성하는 미들웨어입니다.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = GenerateRequestID()
			r.Header.Set("X-Request-ID", requestID)
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// GenerateRequestID는 고유한 요청 ID를 생성합니다.
func GenerateRequestID() string {
	return uuid.NewString()
}
