// Package handler はクライアントの稼働状態を公開するHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/todosync/internal/session"
)

// HealthResponse は/healthのレスポンス。
type HealthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatusHandler はヘルスチェックのハンドラー。
type StatusHandler struct {
	session session.Provider
	started time.Time
	now     func() time.Time
}

// NewStatusHandler はStatusHandlerの新しいインスタンスを生成する。
func NewStatusHandler(p session.Provider) *StatusHandler {
	if p == nil {
		p = session.Static{}
	}
	return &StatusHandler{session: p, started: time.Now(), now: time.Now}
}

// Health はGET /healthを処理する。
// セッションの有無に関わらず200を返し、ログイン状態を併せて返す。
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	_, ok := h.session.Current()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:        "ok",
		Authenticated: ok,
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
	})
}
