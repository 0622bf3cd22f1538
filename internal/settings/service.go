// Package settings はユーザーごとの通知設定（閾値・リマインダー）を管理する。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/repository"
	"github.com/hitoshi/bptogether/internal/validation"
)

// Input は通知設定の更新リクエスト。
// 指定されたフィールドのみ既存の設定に上書きする。
// 閾値は0で未設定に戻り、reminderTimeは空文字列で解除される。
type Input struct {
	SysHighAlert *int `json:"sysHighAlert" validate:"omitempty,min=0,max=400"`
	SysHighWarn  *int `json:"sysHighWarn" validate:"omitempty,min=0,max=400"`
	SysLowAlert  *int `json:"sysLowAlert" validate:"omitempty,min=0,max=400"`
	SysLowWarn   *int `json:"sysLowWarn" validate:"omitempty,min=0,max=400"`

	DiaHighAlert *int `json:"diaHighAlert" validate:"omitempty,min=0,max=400"`
	DiaHighWarn  *int `json:"diaHighWarn" validate:"omitempty,min=0,max=400"`
	DiaLowAlert  *int `json:"diaLowAlert" validate:"omitempty,min=0,max=400"`
	DiaLowWarn   *int `json:"diaLowWarn" validate:"omitempty,min=0,max=400"`

	PulseHighAlert *int `json:"pulseHighAlert" validate:"omitempty,min=0,max=400"`
	PulseHighWarn  *int `json:"pulseHighWarn" validate:"omitempty,min=0,max=400"`
	PulseLowAlert  *int `json:"pulseLowAlert" validate:"omitempty,min=0,max=400"`
	PulseLowWarn   *int `json:"pulseLowWarn" validate:"omitempty,min=0,max=400"`

	ReminderEnabled *bool   `json:"reminderEnabled"`
	ReminderTime    *string `json:"reminderTime" validate:"omitempty,hhmm"`
	DailyTarget     *int    `json:"dailyTarget" validate:"omitempty,min=1,max=20"`
}

// Service は通知設定のサービス層。
type Service struct {
	repo   repository.SettingRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SettingRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get はユーザーの通知設定を返す。未作成の場合はnilを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.NotificationSetting, error) {
	setting, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}
	return setting, nil
}

// Upsert は入力を検証し、既存の設定（なければ既定値）に指定フィールドを上書きして保存する。
func (s *Service) Upsert(ctx context.Context, userID string, in Input) (*model.NotificationSetting, error) {
	clearTime := in.ReminderTime != nil && *in.ReminderTime == ""
	if clearTime {
		in.ReminderTime = nil
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	setting, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}
	now := s.now()
	if setting == nil {
		setting = &model.NotificationSetting{
			ID:          uuid.NewString(),
			UserID:      userID,
			DailyTarget: model.DefaultDailyTarget,
			CreatedAt:   now,
		}
	}

	apply(setting, in)
	if clearTime {
		setting.ReminderTime = nil
	}
	setting.UpdatedAt = now

	saved, err := s.repo.Upsert(ctx, setting)
	if err != nil {
		return nil, fmt.Errorf("通知設定の保存に失敗しました: %w", err)
	}

	s.logger.Info("通知設定を更新しました",
		slog.String("user_id", userID),
		slog.Bool("reminder_enabled", saved.ReminderEnabled),
	)
	return saved, nil
}

func apply(s *model.NotificationSetting, in Input) {
	thresholds := []struct {
		dst **int
		src *int
	}{
		{&s.SysHighAlert, in.SysHighAlert},
		{&s.SysHighWarn, in.SysHighWarn},
		{&s.SysLowAlert, in.SysLowAlert},
		{&s.SysLowWarn, in.SysLowWarn},
		{&s.DiaHighAlert, in.DiaHighAlert},
		{&s.DiaHighWarn, in.DiaHighWarn},
		{&s.DiaLowAlert, in.DiaLowAlert},
		{&s.DiaLowWarn, in.DiaLowWarn},
		{&s.PulseHighAlert, in.PulseHighAlert},
		{&s.PulseHighWarn, in.PulseHighWarn},
		{&s.PulseLowAlert, in.PulseLowAlert},
		{&s.PulseLowWarn, in.PulseLowWarn},
	}
	for _, t := range thresholds {
		if t.src != nil {
			v := *t.src
			*t.dst = &v
		}
	}

	if in.ReminderEnabled != nil {
		s.ReminderEnabled = *in.ReminderEnabled
	}
	if in.ReminderTime != nil {
		v := *in.ReminderTime
		s.ReminderTime = &v
	}
	if in.DailyTarget != nil {
		s.DailyTarget = *in.DailyTarget
	}
}
