// Package api はセッションの資格情報を付与してREST APIを呼び出し、
// 失敗を認証・通信・入力エラーに分類する。
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/session"
	"github.com/hitoshi/todosync/internal/transport"
)

// Client は認証付きのAPIクライアント。
// セッションは呼び出しごとにProviderから取得する。
type Client struct {
	requester transport.Requester
	session   session.Provider
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(r transport.Requester, p session.Provider, logger *slog.Logger) *Client {
	if p == nil {
		p = session.Static{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		requester: r,
		session:   p,
		logger:    logger,
		now:       time.Now,
	}
}

// Session は現在のセッションを返す。
func (c *Client) Session() (model.Session, bool) {
	return c.session.Current()
}

// Call はベアラートークンを付与してリクエストを送信する。
// トークンがない、または期限切れの場合はリクエストを送信せずに認証エラーを返す。
// 2xx以外のレスポンスはステータスに応じたClientErrorとなる。
// エラー時もレスポンスを受け取れていれば併せて返す。
func (c *Client) Call(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
	sess, ok := c.session.Current()
	if !ok {
		c.logger.Debug("request skipped: no session",
			slog.String("method", method),
			slog.String("path", path),
		)
		return nil, model.NewNoCredentialError()
	}
	if session.Expired(sess.Token, c.now()) {
		c.logger.Info("request skipped: session expired",
			slog.String("method", method),
			slog.String("path", path),
		)
		return nil, model.NewExpiredTokenError(nil)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := c.requester.Do(ctx, transport.Request{
		Method: method,
		Path:   path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, model.NewTransportError(err)
	}
	if err := Classify(resp.StatusCode); err != nil {
		return resp, err
	}
	return resp, nil
}

// Classify はHTTPステータスをエラーに分類する。2xxの場合はnilを返す。
func Classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return model.NewUnauthorizedError(status)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return model.NewInvalidInputError(status)
	default:
		return model.NewUnexpectedStatusError(status)
	}
}
