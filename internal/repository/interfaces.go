// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/bptogether/internal/model"
)

// ErrDuplicateShareCode は生成した共有コードが既存のコードと衝突したことを表す。
// 呼び出し側は新しいコードで再試行する。
var ErrDuplicateShareCode = errors.New("share code already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// UpsertByFirebaseUID はFirebase UIDでユーザーを作成または更新する。
	// 既存ユーザーの場合はメールアドレスと表示名のみ更新し、IDは維持する。
	UpsertByFirebaseUID(ctx context.Context, user *model.User) (*model.User, error)

	// AcceptTerms は利用規約への同意日時を記録する。見つからない場合はnilを返す。
	AcceptTerms(ctx context.Context, id string, at time.Time) (*model.User, error)

	// DeleteCascade はユーザーと関連データを同一トランザクションで削除する。
	// 削除順序: readings → notification_settings → device_tokens → share_codes
	// → shared_accesses（共有者・閲覧者の両方）→ users
	// ユーザーが存在しない場合はfalseを返す。
	DeleteCascade(ctx context.Context, id string) (bool, error)
}

// ReadingRepository は測定記録の永続化インターフェース。
type ReadingRepository interface {
	// FindByID は指定IDの測定記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Reading, error)

	// Create は測定記録を作成する。
	Create(ctx context.Context, reading *model.Reading) error

	// BulkCreate は複数の測定記録を1トランザクションで作成し、作成件数を返す。
	BulkCreate(ctx context.Context, readings []*model.Reading) (int, error)

	// Update は測定値と測定日時を上書き更新する。
	Update(ctx context.Context, reading *model.Reading) error

	// Delete は指定IDの測定記録を削除する。
	Delete(ctx context.Context, id string) error

	// ListByUser はユーザーの測定記録をrecorded_at降順で返す。
	ListByUser(ctx context.Context, userID string, q model.ReadingQuery) ([]*model.Reading, error)

	// CountSince はsince以降に記録された測定記録の件数を返す。
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// SettingRepository は通知設定の永続化インターフェース。
type SettingRepository interface {
	// FindByUserID はユーザーの通知設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.NotificationSetting, error)

	// Upsert は通知設定を作成または全項目上書きで更新する。
	Upsert(ctx context.Context, setting *model.NotificationSetting) (*model.NotificationSetting, error)

	// ListDueReminders はリマインダーが有効でreminder_timeが一致する設定を返す。
	ListDueReminders(ctx context.Context, hhmm string) ([]*model.NotificationSetting, error)
}

// SharedAccessRepository は共有関係の永続化インターフェース。
type SharedAccessRepository interface {
	// Find は共有者と閲覧者の組で共有関係を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error)

	// Delete は共有関係を削除する。存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, sharerID, viewerID string) (bool, error)

	// UpdateNotifications は通知の有効・無効を更新する。見つからない場合はnilを返す。
	UpdateNotifications(ctx context.Context, sharerID, viewerID string, enabled bool) (*model.SharedAccess, error)

	// ListByViewer は閲覧者に共有されている関係を共有者の情報付きで返す。
	ListByViewer(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error)

	// ListBySharer は共有者が共有している関係を閲覧者の情報付きで返す。
	ListBySharer(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error)

	// ListNotifiedSharerIDs は閲覧者が通知を有効にしている共有者のID一覧を返す。
	ListNotifiedSharerIDs(ctx context.Context, viewerID string) ([]string, error)
}

// RedeemCheck は引き換え対象の共有コードを検証する。
// コードが存在しない場合はnilが渡される。エラーを返すとトランザクションはロールバックされる。
type RedeemCheck func(code *model.ShareCode) error

// ShareCodeRepository は共有コードの永続化インターフェース。
type ShareCodeRepository interface {
	// Create は共有コードを作成する。
	// コード値が既存のものと衝突した場合はErrDuplicateShareCodeを返す。
	Create(ctx context.Context, code *model.ShareCode) error

	// Redeem は共有コードを行ロックした状態でcheckを呼び出し、
	// 成功した場合は共有関係をUPSERT（ロールは上書き）してコードを使用済みにする。
	// すべて同一トランザクション内で行う。
	Redeem(ctx context.Context, code, viewerID string, check RedeemCheck) (*model.SharedAccess, error)

	// DeleteExpired はexpires_atがnowより前の共有コードを使用済みかどうかに関わらず削除する。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DeviceTokenRepository はプッシュ通知トークンの永続化インターフェース。
type DeviceTokenRepository interface {
	// Upsert はトークンを登録する。既に登録済みのトークンは新しいユーザーとプラットフォームに付け替える。
	Upsert(ctx context.Context, token *model.DeviceToken) error

	// DeleteByToken はトークンを削除し、削除件数を返す。
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// Exists はトークンが登録済みかどうかを返す。
	Exists(ctx context.Context, token string) (bool, error)

	// ListTokensByUser はユーザーに紐付く全トークン値を返す。
	ListTokensByUser(ctx context.Context, userID string) ([]string, error)
}
