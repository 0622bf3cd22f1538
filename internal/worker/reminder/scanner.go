// Package reminder は1日の目標測定回数に達していないユーザーへのリマインダー送信を提供する。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/bptogether/internal/metrics"
	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/notification"
)

const (
	// DefaultGranularity はスキャン時刻を丸める単位の既定値。
	DefaultGranularity = 30 * time.Minute
	// DefaultMaxConcurrency はユーザーごとの処理の最大並列数の既定値。
	DefaultMaxConcurrency = 8
)

// DueReminderLister はリマインダー時刻が一致する通知設定を取得する。
type DueReminderLister interface {
	ListDueReminders(ctx context.Context, hhmm string) ([]*model.NotificationSetting, error)
}

// ReadingCounter は指定時刻以降の測定記録の件数を数える。
type ReadingCounter interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// TopicSender はトピック宛ての通知を送信する。
type TopicSender interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string)
}

// Config はScannerの設定。
type Config struct {
	Location       *time.Location
	Granularity    time.Duration
	MaxConcurrency int
}

// Scanner はリマインダー時刻を迎えたユーザーの当日の測定回数を確認し、
// 目標に満たない場合にリマインダーを送信する。
type Scanner struct {
	settings DueReminderLister
	readings ReadingCounter
	sender   TopicSender
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewScanner はScannerの新しいインスタンスを生成する。
func NewScanner(
	settings DueReminderLister,
	readings ReadingCounter,
	sender TopicSender,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	cfg Config,
) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = DefaultGranularity
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Scanner{
		settings: settings,
		readings: readings,
		sender:   sender,
		metrics:  mc,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Slot はtを設定されたタイムゾーンの壁時計で丸め、"HH:MM"形式で返す。
func (s *Scanner) Slot(t time.Time) string {
	local := t.In(s.cfg.Location)
	step := int(s.cfg.Granularity / time.Minute)
	if step <= 0 {
		step = 1
	}
	minutes := local.Hour()*60 + local.Minute()
	minutes -= minutes % step
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// startOfDay はtを含む日の設定タイムゾーンでの0時を返す。
func (s *Scanner) startOfDay(t time.Time) time.Time {
	local := t.In(s.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
}

// RunOnce は現在時刻のスロットに一致するリマインダーを処理する。
// ユーザーごとの失敗はログに記録し、他のユーザーの処理は継続する。
func (s *Scanner) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := s.now()
	slot := s.Slot(now)

	due, err := s.settings.ListDueReminders(ctx, slot)
	if err != nil {
		return fmt.Errorf("リマインダー対象の取得に失敗: %w", err)
	}

	s.logger.Info("リマインダーチェックを開始します",
		slog.String("slot", slot),
		slog.Int("due_count", len(due)),
	)

	since := s.startOfDay(now)
	var sent atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, setting := range due {
		g.Go(func() error {
			ok, err := s.remind(gctx, setting, since)
			if err != nil {
				s.logger.Error("リマインダーの処理に失敗しました",
					slog.String("user_id", setting.UserID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if ok {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start)
	s.metrics.RecordReminderScan(duration, len(due), int(sent.Load()))
	s.logger.Info("リマインダーチェックが完了しました",
		slog.String("slot", slot),
		slog.Int("due_count", len(due)),
		slog.Int64("sent_count", sent.Load()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// remind は当日の測定回数が目標に満たない場合にリマインダーを送信する。
// 送信した場合はtrueを返す。
func (s *Scanner) remind(ctx context.Context, setting *model.NotificationSetting, since time.Time) (bool, error) {
	count, err := s.readings.CountSince(ctx, setting.UserID, since)
	if err != nil {
		return false, fmt.Errorf("当日の測定回数の取得に失敗: %w", err)
	}

	target := setting.DailyTarget
	if target <= 0 {
		target = model.DefaultDailyTarget
	}
	if count >= target {
		return false, nil
	}

	s.sender.SendToTopic(ctx,
		notification.TopicForUser(setting.UserID),
		"BPTogether 測定リマインダー",
		fmt.Sprintf("今日の測定は %d/%d 回です。測定を記録しましょう。", count, target),
		map[string]string{"type": notification.KindReminder},
	)
	return true, nil
}
