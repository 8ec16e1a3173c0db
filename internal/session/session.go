// Package session はログイン中のプリンシパル（トークンとユーザーID）へのアクセスを提供する。
// コアのコンポーネントはグローバル状態を参照せず、Providerを明示的に受け取る。
package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/todosync/internal/model"
)

// Provider は現在のセッションを返す。
// 認証付きの呼び出しごとに参照されるため、ログアウトは次の呼び出しから反映される。
// セッションがない場合はokがfalseとなる（匿名状態）。
type Provider interface {
	Current() (model.Session, bool)
}

// Static は固定のセッションを返すProvider。
// ゼロ値は匿名セッションを表す。
type Static model.Session

// Current はProviderインターフェースを実装する。
func (s Static) Current() (model.Session, bool) {
	sess := model.Session(s)
	return sess, sess.Authenticated()
}

// Chain は先頭から順にProviderを参照し、最初に見つかったセッションを返す。
type Chain []Provider

// Current はProviderインターフェースを実装する。
func (c Chain) Current() (model.Session, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if s, ok := p.Current(); ok {
			return s, true
		}
	}
	return model.Session{}, false
}

// StripBearer は "Bearer " プレフィックス付きで渡されたトークンから生の値を取り出す。
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}

// Expiry はJWT形式のトークンからexpクレームを取り出す。
// 署名は検証しない（検証はサーバーの責務）。
// JWTとして解析できない、またはexpがない場合はokがfalseとなる。
func Expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired はトークンがnow時点で期限切れかどうかを返す。
// 期限を判定できない不透明なトークンは期限切れとみなさない。
func Expired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
