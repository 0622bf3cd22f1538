// Package model はドメインモデルを定義する。
package model

import "time"

// Reading は1回分の血圧測定記録を表す。
type Reading struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      int       `json:"pulse"`
	RecordedAt time.Time `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ReadingInput は測定記録の作成に必要な値。
// RecordedAtがnilの場合は作成時刻を使用する。
type ReadingInput struct {
	Systolic   int
	Diastolic  int
	Pulse      int
	RecordedAt *time.Time
}

// ReadingPatch は測定記録の部分更新を表す。nilのフィールドは変更しない。
type ReadingPatch struct {
	Systolic   *int
	Diastolic  *int
	Pulse      *int
	RecordedAt *time.Time
}

// ReadingQuery は測定記録一覧の取得条件を表す。
// Start/Endが両方指定されていれば期間指定、Page/Limitが指定されていればページング、
// どちらもなければ全件取得となる。
type ReadingQuery struct {
	Start *time.Time
	End   *time.Time
	Page  int
	Limit int
}
