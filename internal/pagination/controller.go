// Package pagination はページ番号・ページサイズ・ソート方向を保持し、
// 一覧取得をクエリキャッシュ経由で行う。
package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/query"
)

// ErrInvalidPageSize は許可されていないページサイズが指定された場合のエラー。
var ErrInvalidPageSize = errors.New("page size must be one of 10, 50, 100")

// ErrInvalidSort は不正なソート方向が指定された場合のエラー。
var ErrInvalidSort = errors.New("sort direction must be ASC or DESC")

// Querier はクエリキャッシュの参照操作。
type Querier interface {
	Query(ctx context.Context, req query.Request) query.Result
	Await(ctx context.Context, req query.Request) (query.Result, error)
}

// View は一覧の表示用の状態。
type View struct {
	Params model.ListParams
	Status model.QueryStatus
	Page   model.TodoPage
	Err    error
	// Stale はPageが取得中の別キーの直近データであることを示す。
	Stale bool
}

// Controller はページネーション付き一覧のパラメータを保持する。
// ページ番号の範囲外の値は自動では補正しない（Clampで明示的に補正する）。
type Controller struct {
	cache Querier

	mu     sync.Mutex
	params model.ListParams
}

// NewController はControllerの新しいインスタンスを生成する。
// initialの不正な値はデフォルトで置き換える。
func NewController(cache Querier, initial model.ListParams) *Controller {
	def := model.DefaultListParams()
	if initial.Page < 1 {
		initial.Page = def.Page
	}
	if !model.IsAllowedPageSize(initial.PageSize) {
		initial.PageSize = def.PageSize
	}
	if initial.SortDirection != model.SortAscending && initial.SortDirection != model.SortDescending {
		initial.SortDirection = def.SortDirection
	}
	return &Controller{cache: cache, params: initial}
}

// Params は現在のパラメータを返す。
func (c *Controller) Params() model.ListParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Prev は前のページに移動する。1ページ目より前には移動しない。
func (c *Controller) Prev() model.ListParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Page = max(c.params.Page-1, 1)
	return c.params
}

// Next は次のページに移動する。ページ数の上限は確認しない。
func (c *Controller) Next() model.ListParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Page++
	return c.params
}

// SetPage は指定したページに移動する。
func (c *Controller) SetPage(page int) (model.ListParams, error) {
	if page < 1 {
		return c.Params(), fmt.Errorf("page must be >= 1: %d", page)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Page = page
	return c.params, nil
}

// SetPageSize はページサイズを変更する。ページ番号は変更しない。
func (c *Controller) SetPageSize(n int) (model.ListParams, error) {
	if !model.IsAllowedPageSize(n) {
		return c.Params(), ErrInvalidPageSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.PageSize = n
	return c.params, nil
}

// SetSort はソート方向を変更する。ページ番号は変更しない。
func (c *Controller) SetSort(dir model.SortDirection) (model.ListParams, error) {
	if dir != model.SortAscending && dir != model.SortDescending {
		return c.Params(), ErrInvalidSort
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.SortDirection = dir
	return c.params, nil
}

// Clamp はページ番号を[1, pageCount]に収める。補正した場合はtrueを返す。
// pageCountが0以下（空の一覧）の場合は1ページ目とする。
func (c *Controller) Clamp(pageCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	page := min(c.params.Page, max(pageCount, 1))
	if page == c.params.Page {
		return false
	}
	c.params.Page = page
	return true
}

// Request は現在のパラメータに対応するクエリを返す。
func (c *Controller) Request() query.Request {
	return ListRequest(c.Params())
}

// ListRequest はパラメータに対応するクエリを返す。
func ListRequest(p model.ListParams) query.Request {
	return query.Request{
		Resource: api.ResourceTodos,
		Params:   api.ListQuery(p),
		Path:     api.ListPath(p),
	}
}

// Load は現在のページの取得完了を待って返す。
func (c *Controller) Load(ctx context.Context) (View, error) {
	params := c.Params()
	r, err := c.cache.Await(ctx, ListRequest(params))
	if err != nil {
		return View{Params: params, Status: r.Status}, err
	}
	return toView(params, r), nil
}

// Peek は現在のページの状態をブロックせずに返す。
func (c *Controller) Peek(ctx context.Context) View {
	params := c.Params()
	return toView(params, c.cache.Query(ctx, ListRequest(params)))
}

func toView(params model.ListParams, r query.Result) View {
	v := View{Params: params, Status: r.Status, Err: r.Err}
	switch {
	case r.Status == model.QueryStatusReady:
		page, err := api.DecodeTodoPage(r.Data)
		if err != nil {
			v.Status = model.QueryStatusError
			v.Err = err
			return v
		}
		v.Page = page
	case r.Status.Pending() && r.Previous != nil:
		if page, err := api.DecodeTodoPage(r.Previous); err == nil {
			v.Page = page
			v.Stale = true
		}
	}
	return v
}
