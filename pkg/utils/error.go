package utils

import (
	"context"
	"encoding/json"
	"net/http"
)

// 컨텍스트 키 타입 정의
type contextKey string

// 에러 컨텍스트 키
const (
	ErrorContextKey contextKey = "error"
)

// ErrorContext는 요청 처리 중 발생한 에러 정보를 저장하는 구조체
type ErrorContext struct {
	Error     error
	Message   string
	Code      int
	RequestID string
	Path      string
	Method    string
}

// errorHolder는 미들웨어와 핸들러가 같은 에러 컨텍스트를 공유하도록 합니다.
type errorHolder struct {
	errCtx *ErrorContext
}

// WithErrorHolder는 핸들러가 에러를 기록할 수 있는 요청을 반환합니다.
// ErrorHandlerMiddleware가 호출합니다.
func WithErrorHolder(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), ErrorContextKey, &errorHolder{})
	return r.WithContext(ctx)
}

// SetError는 요청에 에러와 상태 코드를 기록합니다.
func SetError(r *http.Request, err error, code int) {
	holder, ok := r.Context().Value(ErrorContextKey).(*errorHolder)
	if !ok {
		return
	}

	holder.errCtx = &ErrorContext{
		Error:     err,
		Message:   err.Error(),
		Code:      code,
		RequestID: r.Header.Get("X-Request-ID"),
		Path:      r.URL.Path,
		Method:    r.Method,
	}
}

// GetErrorContext는 컨텍스트에서 에러 정보를 가져옵니다.
func GetErrorContext(ctx context.Context) *ErrorContext {
	if ctx == nil {
		return nil
	}
	if holder, ok := ctx.Value(ErrorContextKey).(*errorHolder); ok {
		return holder.errCtx
	}
	return nil
}

// HasError는 컨텍스트에 에러가 있는지 확인합니다.
func HasError(ctx context.Context) bool {
	return GetErrorContext(ctx) != nil
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError는 에러 응답을 클라이언트에 전송합니다.
func WriteError(w http.ResponseWriter, r *http.Request) {
	errCtx := GetErrorContext(r.Context())
	if errCtx == nil {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: http.StatusText(http.StatusInternalServerError),
			Code:  http.StatusInternalServerError,
		})
		return
	}

	WriteJSON(w, errCtx.Code, ErrorResponse{
		Error:     errCtx.Message,
		Code:      errCtx.Code,
		Path:      errCtx.Path,
		Method:    errCtx.Method,
		RequestID: errCtx.RequestID,
	})
}

// WriteJSON은 JSON 응답을 전송합니다.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
