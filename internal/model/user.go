// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdP（Firebase Authentication）のUIDで一意に識別される。
type User struct {
	ID              string     `json:"id"`
	FirebaseUID     string     `json:"firebaseUid"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	TermsAcceptedAt *time.Time `json:"termsAcceptedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// UserSummary は共有相手として表示するユーザーの最小限の情報。
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity は外部IdPで検証済みのユーザー情報を表す。
type Identity struct {
	UID   string
	Email string
	Name  string
}
