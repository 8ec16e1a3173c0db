package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponseBody はStrapi形式のエラーレスポンス。
type ErrorResponseBody struct {
	Data  any         `json:"data"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail はエラーの詳細。
type ErrorDetail struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// WriteErrorResponse はStrapi形式でHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error: ErrorDetail{
			Status:  statusCode,
			Name:    name,
			Message: message,
		},
	})
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
// 詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "InternalServerError", "Internal Server Error")
}
