// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Todo はサーバーが所有する短いテキストレコードを表す。
// クライアントは一時的なコピーのみを保持する。
type Todo struct {
	ID          int
	Title       string
	Description string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoPage はページネーション付き一覧APIの1ページ分の結果。
// TotalとPageCountはサーバーが唯一の情報源となる。
type TodoPage struct {
	Todos     []Todo
	Total     int
	PageCount int
}

// SortDirection は作成日時によるソート方向を表す。
type SortDirection string

const (
	// SortAscending は古い順。
	SortAscending SortDirection = "ASC"
	// SortDescending は新しい順。
	SortDescending SortDirection = "DESC"
)

// ParseSortDirection は文字列をSortDirectionに変換する。
// asc/desc（大文字小文字は問わない）とoldest/latestを受け付ける。
func ParseSortDirection(s string) (SortDirection, bool) {
	switch strings.ToLower(s) {
	case "asc", "oldest":
		return SortAscending, true
	case "desc", "latest":
		return SortDescending, true
	default:
		return "", false
	}
}

// 許可されるページサイズ。
var allowedPageSizes = []int{10, 50, 100}

// AllowedPageSizes は選択可能なページサイズの一覧を返す。
func AllowedPageSizes() []int {
	out := make([]int, len(allowedPageSizes))
	copy(out, allowedPageSizes)
	return out
}

// IsAllowedPageSize はnが選択可能なページサイズかどうかを返す。
func IsAllowedPageSize(n int) bool {
	for _, s := range allowedPageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// ListParams は一覧取得のクエリパラメータ。
type ListParams struct {
	Page          int
	PageSize      int
	SortDirection SortDirection
}

// DefaultListParams は初期表示時のパラメータを返す。
func DefaultListParams() ListParams {
	return ListParams{
		Page:          1,
		PageSize:      10,
		SortDirection: SortDescending,
	}
}

// FormState は作成・編集モーダルのフォーム入力値を保持する。
type FormState struct {
	Title       string
	Description string
}
