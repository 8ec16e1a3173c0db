package middleware

import (
	"log/slog"
	"net/http"
)

// RequestIDHeader はクライアントがリクエストごとに付与するIDのヘッダー名。
const RequestIDHeader = "X-Request-ID"

// requestAttrs はリクエストを識別するログ属性を返す。
// request_idはヘッダーが存在する場合のみ含む。
func requestAttrs(r *http.Request) []any {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if id := r.Header.Get(RequestIDHeader); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	return attrs
}
