// Package model はドメインモデルを定義する。
package model

// Session はログイン中のユーザーを識別するベアラー資格情報。
// ゼロ値（トークンなし）は匿名状態を表す。
type Session struct {
	Token  string
	UserID int
}

// Authenticated はトークンが存在するかどうかを返す。
func (s Session) Authenticated() bool {
	return s.Token != ""
}
