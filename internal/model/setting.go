// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultDailyTarget は1日の目標測定回数の既定値。
const DefaultDailyTarget = 2

// NotificationSetting はユーザーごとの通知設定を表す。
// 閾値はnilまたは0の場合に未設定として扱う。
type NotificationSetting struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	SysHighAlert *int `json:"sysHighAlert"`
	SysHighWarn  *int `json:"sysHighWarn"`
	SysLowAlert  *int `json:"sysLowAlert"`
	SysLowWarn   *int `json:"sysLowWarn"`

	DiaHighAlert *int `json:"diaHighAlert"`
	DiaHighWarn  *int `json:"diaHighWarn"`
	DiaLowAlert  *int `json:"diaLowAlert"`
	DiaLowWarn   *int `json:"diaLowWarn"`

	PulseHighAlert *int `json:"pulseHighAlert"`
	PulseHighWarn  *int `json:"pulseHighWarn"`
	PulseLowAlert  *int `json:"pulseLowAlert"`
	PulseLowWarn   *int `json:"pulseLowWarn"`

	ReminderEnabled bool      `json:"reminderEnabled"`
	ReminderTime    *string   `json:"reminderTime"` // "HH:MM"
	DailyTarget     int       `json:"dailyTarget"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
