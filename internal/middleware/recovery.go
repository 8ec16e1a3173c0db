package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanicを回収し、Strapi形式の500レスポンスを返すミドルウェアを生成する。
// ログにはクライアントのrequest_idを含め、送信側のログと突き合わせられるようにする。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					args := append(requestAttrs(r),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					logger.Error("panic recovered", args...)
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
