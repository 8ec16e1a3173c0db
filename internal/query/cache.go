// Package query は認証付きAPI呼び出しの結果をキー単位でキャッシュする。
//
// キーはリソース名・リソースごとの無効化バージョン・パラメータで構成される。
// 各キーはそれぞれ独立したセルを持ち、1キーにつき発行されるリクエストは1回のみ。
// 再試行や期限切れによる破棄は行わず、Invalidateでバージョンを進めた場合にのみ
// 次の参照で新しいキーとして再取得される。
package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/todosync/internal/metrics"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/transport"
)

// Fetcher は認証付きの1回の呼び出しを行う。api.Clientが実装する。
type Fetcher interface {
	Call(ctx context.Context, method, path string, body []byte) (*transport.Response, error)
}

// Request はキャッシュへの問い合わせ。
// Resourceが無効化の単位、Paramsがリソース内のキーとなる。
type Request struct {
	Resource string
	Params   string
	Method   string // 空の場合はGET
	Path     string
}

// Key はセルを一意に識別する。
type Key struct {
	Resource string
	Version  uint64
	Params   string
}

// String はキーの合成文字列を返す。
func (k Key) String() string {
	return fmt.Sprintf("%s#%d?%s", k.Resource, k.Version, k.Params)
}

// Result はセルのスナップショット。
type Result struct {
	Key    Key
	Status model.QueryStatus
	Data   []byte
	Err    error
	// Previous は取得中に表示を維持するための、同一リソースの直近の成功データ。
	// 取得中（loading/fetching）の場合のみ設定される。
	Previous []byte
}

type cell struct {
	key    Key
	issued uint64
	status model.QueryStatus
	data   []byte
	err    error
	done   chan struct{}
}

type lastReady struct {
	issued uint64
	data   []byte
}

// Cache はクエリキャッシュ。
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu       sync.Mutex
	cells    map[Key]*cell
	versions map[string]uint64
	latest   map[string]lastReady
	issued   uint64
}

// NewCache はCacheの新しいインスタンスを生成する。
func NewCache(f Fetcher, logger *slog.Logger, m metrics.MetricsCollector) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Cache{
		fetcher:  f,
		logger:   logger,
		metrics:  m,
		cells:    make(map[Key]*cell),
		versions: make(map[string]uint64),
		latest:   make(map[string]lastReady),
	}
}

// Query はリクエストに対応するセルの現在の状態を返す。ブロックしない。
// 初めて参照されたキーの場合は取得をバックグラウンドで開始する。
// 取得は呼び出し元のctxのキャンセルから切り離される。
func (c *Cache) Query(ctx context.Context, req Request) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(c.cellFor(ctx, req))
}

// Await はセルが確定（readyまたはerror）するまで待機して結果を返す。
// ctxが先に終了した場合は取得中のスナップショットとctxのエラーを返す。
// 取得自体はctxの終了後も継続する。
func (c *Cache) Await(ctx context.Context, req Request) (Result, error) {
	c.mu.Lock()
	ce := c.cellFor(ctx, req)
	c.mu.Unlock()

	select {
	case <-ce.done:
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.snapshot(ce), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(ce), nil
}

// Invalidate はリソースのバージョンを1つ進める。
// 既存のセルは破棄しないが、以降の参照は新しいキーとなる。
func (c *Cache) Invalidate(resource string) {
	c.mu.Lock()
	c.versions[resource]++
	v := c.versions[resource]
	c.mu.Unlock()

	c.metrics.RecordInvalidation(resource)
	c.logger.Debug("query invalidated",
		slog.String("resource", resource),
		slog.Uint64("version", v),
	)
}

// Version はリソースの現在のバージョンを返す。
func (c *Cache) Version(resource string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[resource]
}

// KeyFor はリクエストに対応する現在のキーを返す。
func (c *Cache) KeyFor(req Request) Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyLocked(req)
}

func (c *Cache) keyLocked(req Request) Key {
	return Key{
		Resource: req.Resource,
		Version:  c.versions[req.Resource],
		Params:   req.Params,
	}
}

// cellFor は既存のセルを返すか、新しいセルを作成して取得を開始する。c.muを保持して呼ぶこと。
func (c *Cache) cellFor(ctx context.Context, req Request) *cell {
	key := c.keyLocked(req)
	if ce, ok := c.cells[key]; ok {
		c.metrics.RecordCacheHit(req.Resource)
		return ce
	}

	c.issued++
	ce := &cell{
		key:    key,
		issued: c.issued,
		status: model.QueryStatusLoading,
		done:   make(chan struct{}),
	}
	if _, ok := c.latest[req.Resource]; ok {
		ce.status = model.QueryStatusFetching
	}
	c.cells[key] = ce

	c.logger.Debug("query started",
		slog.String("key", key.String()),
		slog.String("status", string(ce.status)),
	)

	go c.fetch(context.WithoutCancel(ctx), ce, req)
	return ce
}

func (c *Cache) fetch(ctx context.Context, ce *cell, req Request) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := c.fetcher.Call(ctx, method, req.Path, nil)

	c.mu.Lock()
	if err != nil {
		ce.status = model.QueryStatusError
		ce.err = fmt.Errorf("query %s: %w", ce.key, err)
	} else {
		ce.status = model.QueryStatusReady
		ce.data = resp.Body
		// 後から発行されたセルの成功データを古いデータで上書きしない
		if prev, ok := c.latest[req.Resource]; !ok || prev.issued < ce.issued {
			c.latest[req.Resource] = lastReady{issued: ce.issued, data: resp.Body}
		}
	}
	status := ce.status
	close(ce.done)
	c.mu.Unlock()

	c.metrics.RecordQuerySettled(req.Resource, status)
	if err != nil {
		c.logger.Warn("query failed",
			slog.String("key", ce.key.String()),
			slog.String("kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Debug("query settled", slog.String("key", ce.key.String()))
}

// snapshot はc.muを保持して呼ぶこと。
func (c *Cache) snapshot(ce *cell) Result {
	r := Result{
		Key:    ce.key,
		Status: ce.status,
		Data:   ce.data,
		Err:    ce.err,
	}
	if ce.status.Pending() {
		if prev, ok := c.latest[ce.key.Resource]; ok {
			r.Previous = prev.data
		}
	}
	return r
}
