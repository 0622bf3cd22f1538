// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultPlatform はプラットフォーム未指定時の既定値。
const DefaultPlatform = "web"

// DeviceToken はプッシュ通知用のデバイストークンを表す。
// トークン値はシステム全体で一意であり、常に1ユーザーに紐付く。
type DeviceToken struct {
	ID        string
	UserID    string
	Token     string
	Platform  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
