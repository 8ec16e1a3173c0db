// Package transport はREST APIへの1回のHTTP呼び出しを提供する。
// 認証ヘッダーの付与やステータスの解釈は呼び出し元（apiパッケージ）が行う。
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/todosync/internal/metrics"
)

const (
	// defaultMaxBodySize はレスポンスボディの最大読み取りサイズ（5MB）。
	defaultMaxBodySize = 5 << 20
	userAgent          = "todosync/1.0"
)

// Request は1回のHTTP呼び出しの記述。
type Request struct {
	Method string
	Path   string // ベースURLからの相対パス（クエリ文字列を含む）
	Header http.Header
	Body   []byte
}

// Response はステータスとボディを保持する。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Requester は1回のHTTP呼び出しを行うインターフェース。
// レスポンスを受け取れた場合はステータスに関わらずResponseを返し、
// 通信そのものが失敗した場合のみエラーを返す。
type Requester interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// RequesterFunc は関数をRequesterとして扱うアダプタ。
type RequesterFunc func(ctx context.Context, req Request) (*Response, error)

// Do はRequesterインターフェースを実装する。
func (f RequesterFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Client はnet/httpによるRequesterの実装。
// レートリミッターでクライアント側の送信間隔を制御する。
type Client struct {
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// limiterがnilの場合は送信間隔を制限しない。
func NewClient(
	httpClient *http.Client,
	baseURL string,
	limiter *rate.Limiter,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		limiter:     limiter,
		logger:      logger,
		metrics:     m,
		maxBodySize: defaultMaxBodySize,
	}
}

// Do はRequesterインターフェースを実装する。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordTransportFailure(req.Method)
		c.logger.Error("API request failed",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordTransportFailure(req.Method)
		c.logger.Error("failed to read response body",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.metrics.RecordRequest(req.Method, resp.StatusCode, duration)
	c.logger.Debug("API request completed",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}
