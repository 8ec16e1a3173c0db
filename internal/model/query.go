// Package model はドメインモデルを定義する。
package model

// QueryStatus はクエリキャッシュのセル状態を表す。
type QueryStatus string

const (
	// QueryStatusLoading は前回データなしで取得中の状態。
	QueryStatusLoading QueryStatus = "loading"
	// QueryStatusFetching は同一リソースの別キーの成功データがある状態での取得中。
	QueryStatusFetching QueryStatus = "fetching"
	// QueryStatusReady は取得に成功した状態。
	QueryStatusReady QueryStatus = "ready"
	// QueryStatusError は取得に失敗した状態。キーが変わるまで再試行しない。
	QueryStatusError QueryStatus = "error"
)

// Pending は取得中（loadingまたはfetching）かどうかを返す。
func (s QueryStatus) Pending() bool {
	return s == QueryStatusLoading || s == QueryStatusFetching
}
