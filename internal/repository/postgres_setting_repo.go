package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bptogether/internal/model"
)

const settingColumns = `id, user_id,
	sys_high_alert, sys_high_warn, sys_low_alert, sys_low_warn,
	dia_high_alert, dia_high_warn, dia_low_alert, dia_low_warn,
	pulse_high_alert, pulse_high_warn, pulse_low_alert, pulse_low_warn,
	reminder_enabled, reminder_time, daily_target, created_at, updated_at`

// PostgresSettingRepo はPostgreSQLを使用した通知設定リポジトリ。
type PostgresSettingRepo struct {
	db *sql.DB
}

// NewPostgresSettingRepo はPostgresSettingRepoを生成する。
func NewPostgresSettingRepo(db *sql.DB) *PostgresSettingRepo {
	return &PostgresSettingRepo{db: db}
}

// 閾値カラムはNULL許容のため**intへ直接スキャンする。
func scanSetting(row interface{ Scan(...any) error }) (*model.NotificationSetting, error) {
	s := &model.NotificationSetting{}
	err := row.Scan(
		&s.ID, &s.UserID,
		&s.SysHighAlert, &s.SysHighWarn, &s.SysLowAlert, &s.SysLowWarn,
		&s.DiaHighAlert, &s.DiaHighWarn, &s.DiaLowAlert, &s.DiaLowWarn,
		&s.PulseHighAlert, &s.PulseHighWarn, &s.PulseLowAlert, &s.PulseLowWarn,
		&s.ReminderEnabled, &s.ReminderTime, &s.DailyTarget, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindByUserID はユーザーの通知設定を取得する。見つからない場合はnilを返す。
func (r *PostgresSettingRepo) FindByUserID(ctx context.Context, userID string) (*model.NotificationSetting, error) {
	s, err := scanSetting(r.db.QueryRowContext(ctx,
		`SELECT `+settingColumns+` FROM notification_settings WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}
	return s, nil
}

// Upsert は通知設定を作成または全項目上書きで更新する。
// 既存行のidとcreated_atは維持される。
func (r *PostgresSettingRepo) Upsert(ctx context.Context, s *model.NotificationSetting) (*model.NotificationSetting, error) {
	saved, err := scanSetting(r.db.QueryRowContext(ctx,
		`INSERT INTO notification_settings (`+settingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		 ON CONFLICT (user_id) DO UPDATE SET
		   sys_high_alert = EXCLUDED.sys_high_alert,
		   sys_high_warn = EXCLUDED.sys_high_warn,
		   sys_low_alert = EXCLUDED.sys_low_alert,
		   sys_low_warn = EXCLUDED.sys_low_warn,
		   dia_high_alert = EXCLUDED.dia_high_alert,
		   dia_high_warn = EXCLUDED.dia_high_warn,
		   dia_low_alert = EXCLUDED.dia_low_alert,
		   dia_low_warn = EXCLUDED.dia_low_warn,
		   pulse_high_alert = EXCLUDED.pulse_high_alert,
		   pulse_high_warn = EXCLUDED.pulse_high_warn,
		   pulse_low_alert = EXCLUDED.pulse_low_alert,
		   pulse_low_warn = EXCLUDED.pulse_low_warn,
		   reminder_enabled = EXCLUDED.reminder_enabled,
		   reminder_time = EXCLUDED.reminder_time,
		   daily_target = EXCLUDED.daily_target,
		   updated_at = EXCLUDED.updated_at
		 RETURNING `+settingColumns,
		s.ID, s.UserID,
		s.SysHighAlert, s.SysHighWarn, s.SysLowAlert, s.SysLowWarn,
		s.DiaHighAlert, s.DiaHighWarn, s.DiaLowAlert, s.DiaLowWarn,
		s.PulseHighAlert, s.PulseHighWarn, s.PulseLowAlert, s.PulseLowWarn,
		s.ReminderEnabled, s.ReminderTime, s.DailyTarget, s.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("通知設定の保存に失敗しました: %w", err)
	}
	return saved, nil
}

// ListDueReminders はリマインダーが有効でreminder_timeが一致する設定を返す。
// 一致判定は"HH:MM"文字列の完全一致。
func (r *PostgresSettingRepo) ListDueReminders(ctx context.Context, hhmm string) ([]*model.NotificationSetting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+settingColumns+` FROM notification_settings
		 WHERE reminder_enabled AND reminder_time = $1`,
		hhmm,
	)
	if err != nil {
		return nil, fmt.Errorf("リマインダー対象の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var settings []*model.NotificationSetting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("通知設定のスキャンに失敗しました: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインダー対象の読み込みに失敗しました: %w", err)
	}
	return settings, nil
}

// compile-time interface check
var _ SettingRepository = (*PostgresSettingRepo)(nil)
