// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はクライアントエラーの分類。
type ErrorKind string

const (
	// KindAuth は資格情報の欠如・期限切れ、またはHTTP 401/403。
	KindAuth ErrorKind = "auth"
	// KindNetwork は通信失敗、または認証以外の非2xx。
	// サーバーが入力を拒否した場合（HTTP 400/422）もここに含む。
	KindNetwork ErrorKind = "network"
)

// errors.Is で分類を判定するための番兵エラー。
var (
	ErrAuth    = errors.New("auth error")
	ErrNetwork = errors.New("network error")
)

// ClientError はリクエスト失敗の理由を表す。
type ClientError struct {
	Kind       ErrorKind
	Code       string // エラーコード
	Message    string // ログ向けメッセージ
	StatusCode int    // HTTPステータス（通信失敗時は0）
	Err        error  // 原因
}

// Error はerrorインターフェースを実装する。
func (e *ClientError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap は原因エラーを返す。
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is は分類に対応する番兵エラーとの比較を可能にする。
func (e *ClientError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// 定義済みエラーコード
const (
	ErrCodeNoCredential     = "NO_CREDENTIAL"
	ErrCodeExpiredToken     = "EXPIRED_TOKEN"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeTransportFailed  = "TRANSPORT_FAILED"
	ErrCodeUnexpectedStatus = "UNEXPECTED_STATUS"
	ErrCodeDecodeFailed     = "DECODE_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
)

// NewNoCredentialError はセッションにトークンがない場合のエラーを生成する。
func NewNoCredentialError() *ClientError {
	return &ClientError{
		Kind:    KindAuth,
		Code:    ErrCodeNoCredential,
		Message: "no session credential",
	}
}

// NewExpiredTokenError はトークンの有効期限切れエラーを生成する。
func NewExpiredTokenError(err error) *ClientError {
	return &ClientError{
		Kind:    KindAuth,
		Code:    ErrCodeExpiredToken,
		Message: "session credential expired",
		Err:     err,
	}
}

// NewUnauthorizedError はサーバーが401/403を返した場合のエラーを生成する。
func NewUnauthorizedError(statusCode int) *ClientError {
	return &ClientError{
		Kind:       KindAuth,
		Code:       ErrCodeUnauthorized,
		Message:    "server rejected credential",
		StatusCode: statusCode,
	}
}

// NewTransportError は通信そのものが失敗した場合のエラーを生成する。
func NewTransportError(err error) *ClientError {
	return &ClientError{
		Kind:    KindNetwork,
		Code:    ErrCodeTransportFailed,
		Message: "request failed",
		Err:     err,
	}
}

// NewUnexpectedStatusError は認証以外の非2xxのエラーを生成する。
func NewUnexpectedStatusError(statusCode int) *ClientError {
	return &ClientError{
		Kind:       KindNetwork,
		Code:       ErrCodeUnexpectedStatus,
		Message:    "unexpected response status",
		StatusCode: statusCode,
	}
}

// NewDecodeError はレスポンスボディの解析失敗エラーを生成する。
func NewDecodeError(err error) *ClientError {
	return &ClientError{
		Kind:    KindNetwork,
		Code:    ErrCodeDecodeFailed,
		Message: "failed to decode response body",
		Err:     err,
	}
}

// NewInvalidInputError はサーバーが入力を拒否した場合（400/422）のエラーを生成する。
// 入力はクライアント側で検証しないため、分類は認証以外の非2xxと同じnetworkとなる。
func NewInvalidInputError(statusCode int) *ClientError {
	return &ClientError{
		Kind:       KindNetwork,
		Code:       ErrCodeInvalidInput,
		Message:    "server rejected input",
		StatusCode: statusCode,
	}
}

// KindOf はエラーの分類を返す。ClientErrorでない場合はKindNetworkとみなす。
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}
