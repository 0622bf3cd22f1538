// Package model はドメインモデルを定義する。
package model

import "time"

// Role は共有関係における閲覧者の権限を表す。
type Role string

const (
	// RoleViewer は読み取りのみ可能な権限。
	RoleViewer Role = "VIEWER"
	// RoleEditor は読み取りと書き込みが可能な権限。
	RoleEditor Role = "EDITOR"
)

// Valid はRoleが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor
}

// ShareCodeTTL は共有コードの有効期間。
const ShareCodeTTL = 10 * time.Minute

// SharedAccess は共有者（sharer）から閲覧者（viewer）への共有関係を表す。
// (SharerID, ViewerID)の組ごとに高々1件。
type SharedAccess struct {
	ID                   string    `json:"id"`
	SharerID             string    `json:"sharerId"`
	ViewerID             string    `json:"viewerId"`
	Role                 Role      `json:"role"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// SharedAccessWithUser は共有関係と相手ユーザーの情報を結合したモデル。
// 「共有されている一覧」では共有者、「共有している一覧」では閲覧者がUserに入る。
type SharedAccessWithUser struct {
	SharedAccess
	Sharer *UserSummary `json:"sharer,omitempty"`
	Viewer *UserSummary `json:"viewer,omitempty"`
}

// ShareCode は共有関係を成立させるための使い捨てコードを表す。
type ShareCode struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsUsed    bool      `json:"isUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired は指定時刻の時点でコードが期限切れかどうかを返す。
func (c *ShareCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
