package threshold

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/notification"
)

// DefaultDispatchTimeout は非同期通知1件あたりの既定のタイムアウト。
const DefaultDispatchTimeout = 10 * time.Second

// SettingFinder はユーザーの通知設定を取得する。
type SettingFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.NotificationSetting, error)
}

// TopicSender はトピック宛ての通知を送信する。
type TopicSender interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string)
}

// Alerter は測定記録の閾値判定と異常値通知を行う。
type Alerter struct {
	settings SettingFinder
	sender   TopicSender
	logger   *slog.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewAlerter はAlerterを生成する。timeoutが0以下の場合はDefaultDispatchTimeoutを使用する。
func NewAlerter(settings SettingFinder, sender TopicSender, logger *slog.Logger, timeout time.Duration) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Alerter{
		settings: settings,
		sender:   sender,
		logger:   logger,
		timeout:  timeout,
	}
}

// Check は記録者の通知設定で測定記録を評価し、該当があれば記録者のトピックへ通知する。
// 通知を送信した場合はtrueを返す。
func (a *Alerter) Check(ctx context.Context, r *model.Reading, owner *model.User) (bool, error) {
	settings, err := a.settings.FindByUserID(ctx, r.UserID)
	if err != nil {
		return false, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}

	flags := Evaluate(r, settings)
	if len(flags) == 0 {
		return false, nil
	}

	title, body := compose(r, owner, flags)
	a.sender.SendToTopic(ctx, notification.TopicForUser(r.UserID), title, body, map[string]string{
		"type":     notification.KindAlert,
		"recordId": r.ID,
	})
	return true, nil
}

// Dispatch はCheckをバックグラウンドで実行する。
// 呼び出し元のキャンセルから切り離したコンテキストにタイムアウトを設定して実行し、
// エラーはログに記録するのみで呼び出し元には返さない。
func (a *Alerter) Dispatch(ctx context.Context, r *model.Reading, owner *model.User) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if _, err := a.Check(ctx, r, owner); err != nil {
			a.logger.Error("閾値チェックに失敗しました",
				slog.String("record_id", r.ID),
				slog.String("user_id", r.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait は実行中のDispatchがすべて完了するまで待つ。
func (a *Alerter) Wait() {
	a.wg.Wait()
}

var metricLabels = map[Metric]string{
	MetricSystolic:  "収縮期血圧",
	MetricDiastolic: "拡張期血圧",
	MetricPulse:     "脈拍",
}

func describe(f Flag) string {
	var state string
	switch {
	case f.Level == LevelAlert && f.Direction == DirectionHigh:
		state = "が危険域まで高い"
	case f.Level == LevelAlert:
		state = "が危険域まで低い"
	case f.Direction == DirectionHigh:
		state = "がやや高い"
	default:
		state = "がやや低い"
	}
	return fmt.Sprintf("%s%s (%d)", metricLabels[f.Metric], state, f.Value)
}

func compose(r *model.Reading, owner *model.User, flags []Flag) (string, string) {
	title := "BPTogether 測定値の注意"
	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.Level == LevelAlert {
			title = "BPTogether 測定値の警告"
		}
		parts = append(parts, describe(f))
	}

	body := fmt.Sprintf("%sさんの測定値: %s\n収縮期: %d, 拡張期: %d, 脈拍: %d",
		displayName(owner), strings.Join(parts, ", "), r.Systolic, r.Diastolic, r.Pulse)
	return title, body
}

func displayName(u *model.User) string {
	switch {
	case u == nil:
		return "ユーザー"
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return "ユーザー"
}
