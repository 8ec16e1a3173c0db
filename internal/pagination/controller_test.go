package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/query"
	"github.com/hitoshi/todosync/internal/transport"
)

// pathRecorder は要求されたパスを記録し、固定の一覧レスポンスを返す。
type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) Call(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
	resp := fmt.Sprintf(`{"data":[{"id":1,"attributes":{"title":%q}}],"meta":{"pagination":{"total":25,"pageCount":3}}}`, path)
	return &transport.Response{StatusCode: http.StatusOK, Body: []byte(resp)}, nil
}

func (p *pathRecorder) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func newTestController(t *testing.T) (*Controller, *query.Cache, *pathRecorder) {
	t.Helper()
	rec := &pathRecorder{}
	var buf bytes.Buffer
	cache := query.NewCache(rec, slog.New(slog.NewJSONHandler(&buf, nil)), nil)
	return NewController(cache, model.DefaultListParams()), cache, rec
}

func TestController_DefaultRequestPath(t *testing.T) {
	c, _, rec := newTestController(t)

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	want := "todos?pagination[page]=1&pagination[pageSize]=10&sort=createdAt:DESC"
	got := rec.recorded()
	if len(got) != 1 || got[0] != want {
		t.Errorf("paths = %v, want [%s]", got, want)
	}
}

func TestController_PrevNeverBelowOne(t *testing.T) {
	c, _, _ := newTestController(t)

	for i := 0; i < 3; i++ {
		if p := c.Prev(); p.Page != 1 {
			t.Errorf("Prev() page = %d, want 1", p.Page)
		}
	}
	c.Next()
	c.Next()
	if p := c.Prev(); p.Page != 2 {
		t.Errorf("Prev() page = %d, want 2", p.Page)
	}
}

func TestController_NextIsUnbounded(t *testing.T) {
	c, _, _ := newTestController(t)

	v, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	for i := 0; i < v.Page.PageCount+2; i++ {
		c.Next()
	}
	if p := c.Params(); p.Page != v.Page.PageCount+3 {
		t.Errorf("page = %d, want %d", p.Page, v.Page.PageCount+3)
	}
}

func TestController_SetPageSizeKeepsPageUntilClamp(t *testing.T) {
	c, _, _ := newTestController(t)
	for i := 0; i < 4; i++ {
		c.Next()
	}

	p, err := c.SetPageSize(100)
	if err != nil {
		t.Fatalf("SetPageSize がエラーを返した: %v", err)
	}
	if p.Page != 5 || p.PageSize != 100 {
		t.Errorf("params = %+v, want page=5 pageSize=100", p)
	}

	if !c.Clamp(1) {
		t.Error("範囲外のページは補正されること")
	}
	if p := c.Params(); p.Page != 1 {
		t.Errorf("Clamp後のpage = %d, want 1", p.Page)
	}
	if c.Clamp(1) {
		t.Error("範囲内のページは補正しないこと")
	}
}

func TestController_ClampEmptyList(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Next()
	c.Clamp(0)
	if p := c.Params(); p.Page != 1 {
		t.Errorf("page = %d, want 1", p.Page)
	}
}

func TestController_SetPageSizeRejectsUnknown(t *testing.T) {
	c, _, _ := newTestController(t)

	if _, err := c.SetPageSize(20); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("err = %v, want ErrInvalidPageSize", err)
	}
	if p := c.Params(); p.PageSize != 10 {
		t.Errorf("pageSize = %d, want 10", p.PageSize)
	}
}

func TestController_SetSortKeepsPage(t *testing.T) {
	c, _, rec := newTestController(t)
	c.Next()

	p, err := c.SetSort(model.SortAscending)
	if err != nil {
		t.Fatalf("SetSort がエラーを返した: %v", err)
	}
	if p.Page != 2 {
		t.Errorf("page = %d, want 2", p.Page)
	}
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	want := "todos?pagination[page]=2&pagination[pageSize]=10&sort=createdAt:ASC"
	if got := rec.recorded(); len(got) != 1 || got[0] != want {
		t.Errorf("paths = %v, want [%s]", got, want)
	}
}

func TestController_RepeatedSetSortIsIdempotent(t *testing.T) {
	c, cache, rec := newTestController(t)

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.SetSort(model.SortDescending); err != nil {
			t.Fatalf("SetSort がエラーを返した: %v", err)
		}
		if _, err := c.Load(context.Background()); err != nil {
			t.Fatalf("Load がエラーを返した: %v", err)
		}
	}

	if v := cache.Version(api.ResourceTodos); v != 0 {
		t.Errorf("Version = %d, want 0", v)
	}
	if got := rec.recorded(); len(got) != 1 {
		t.Errorf("取得回数 = %d, want 1: %v", len(got), got)
	}
}

func TestController_SetSortRejectsUnknown(t *testing.T) {
	c, _, _ := newTestController(t)
	if _, err := c.SetSort("createdAt"); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("err = %v, want ErrInvalidSort", err)
	}
}

func TestController_LoadDecodesPage(t *testing.T) {
	c, _, _ := newTestController(t)

	v, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if v.Status != model.QueryStatusReady {
		t.Errorf("Status = %s, want ready", v.Status)
	}
	if v.Page.Total != 25 || v.Page.PageCount != 3 || len(v.Page.Todos) != 1 {
		t.Errorf("Page = %+v", v.Page)
	}
	if v.Stale {
		t.Error("確定済みのデータはStaleではないこと")
	}
}

func TestController_PeekShowsPreviousWhileFetching(t *testing.T) {
	gate := make(chan struct{})
	var calls int
	var mu sync.Mutex
	fetcher := fetcherFunc(func(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n > 1 {
			<-gate
		}
		return &transport.Response{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"data":[{"id":9,"attributes":{"title":"old"}}],"meta":{"pagination":{"total":1,"pageCount":1}}}`),
		}, nil
	})
	var buf bytes.Buffer
	cache := query.NewCache(fetcher, slog.New(slog.NewJSONHandler(&buf, nil)), nil)
	c := NewController(cache, model.DefaultListParams())

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	c.Next()

	v := c.Peek(context.Background())
	if v.Status != model.QueryStatusFetching {
		t.Errorf("Status = %s, want fetching", v.Status)
	}
	if !v.Stale || len(v.Page.Todos) != 1 || v.Page.Todos[0].ID != 9 {
		t.Errorf("取得中は直近のデータを表示すること: %+v", v)
	}
	close(gate)
}

func TestController_LoadAuthError(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
		return nil, model.NewNoCredentialError()
	})
	var buf bytes.Buffer
	cache := query.NewCache(fetcher, slog.New(slog.NewJSONHandler(&buf, nil)), nil)
	c := NewController(cache, model.DefaultListParams())

	v, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load は待機のエラーのみ返すこと: %v", err)
	}
	if v.Status != model.QueryStatusError || !errors.Is(v.Err, model.ErrAuth) {
		t.Errorf("View = %+v, want auth error", v)
	}
}

func TestNewController_ReplacesInvalidInitial(t *testing.T) {
	c := NewController(nil, model.ListParams{Page: 0, PageSize: 7, SortDirection: "x"})
	if diff := c.Params(); diff != model.DefaultListParams() {
		t.Errorf("Params = %+v, want defaults", diff)
	}
}

type fetcherFunc func(ctx context.Context, method, path string, body []byte) (*transport.Response, error)

func (f fetcherFunc) Call(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
	return f(ctx, method, path, body)
}
