// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Codeがエラー種別を表し、HTTPステータスへの変換はCodeのみで判定する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, share, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeRecordNotFound       = "RECORD_NOT_FOUND"
	ErrCodeRelationshipNotFound = "RELATIONSHIP_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidCode          = "INVALID_CODE"
	ErrCodeCodeExpired          = "CODE_EXPIRED"
	ErrCodeCodeAlreadyUsed      = "CODE_ALREADY_USED"
	ErrCodeSelfShareNotAllowed  = "SELF_SHARE_NOT_ALLOWED"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// IsCode はerrがcodeを持つAPIErrorかどうかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は対象ユーザーのデータに対する権限がない場合のエラーを生成する。
func NewForbiddenError(role Role) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("このユーザーのデータに対する%s権限がありません。", role),
		Category: "auth",
		Action:   "データの所有者に共有コードの発行を依頼してください。",
	}
}

// NewInvalidRequestError はリクエストの形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewRecordNotFoundError は測定記録が見つからない、または対象ユーザーのものではない場合のエラーを生成する。
func NewRecordNotFoundError(recordID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された測定記録が見つかりません: %s", recordID),
		Category: "validation",
		Action:   "記録IDを確認してください。",
	}
}

// NewRelationshipNotFoundError は共有関係が存在しない場合のエラーを生成する。
func NewRelationshipNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRelationshipNotFound,
		Message:  "共有関係が見つかりません。",
		Category: "share",
		Action:   "共有一覧を再読み込みしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCodeError は共有コードが存在しない場合のエラーを生成する。
func NewInvalidCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCode,
		Message:  "共有コードが無効です。",
		Category: "share",
		Action:   "6桁のコードを確認して再入力してください。",
	}
}

// NewCodeExpiredError は共有コードの有効期限切れエラーを生成する。
func NewCodeExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeExpired,
		Message:  "共有コードの有効期限が切れています。",
		Category: "share",
		Action:   "共有者に新しいコードの発行を依頼してください。",
	}
}

// NewCodeAlreadyUsedError は使用済みの共有コードを再利用しようとした場合のエラーを生成する。
func NewCodeAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeAlreadyUsed,
		Message:  "この共有コードは既に使用されています。",
		Category: "share",
		Action:   "共有者に新しいコードの発行を依頼してください。",
	}
}

// NewSelfShareNotAllowedError は自分自身の共有コードを使用しようとした場合のエラーを生成する。
func NewSelfShareNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfShareNotAllowed,
		Message:  "自分自身と共有することはできません。",
		Category: "share",
		Action:   "共有したい相手にコードを伝えてください。",
	}
}

// NewInvalidTokenError はプッシュ通知トークンの登録に失敗した場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "通知トークンが無効か、購読に失敗しました。",
		Category: "notification",
		Action:   "ブラウザの通知許可を確認し、再度有効化してください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
