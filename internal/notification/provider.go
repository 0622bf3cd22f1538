// Package notification はFCMトピックを使ったプッシュ通知の配信を提供する。
// ユーザーごとに1つのトピックを持ち、閲覧者のデバイストークンを共有者のトピックに
// 購読させることで、共有者宛ての通知が閲覧者にも届く。
package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// 通知データのtype値。
const (
	KindAlert    = "ALERT"
	KindReminder = "REMINDER"
)

// TopicForUser はユーザーの通知トピック名を返す。
func TopicForUser(userID string) string {
	return fmt.Sprintf("topic-%s", userID)
}

// Message はトピック宛てに送信する通知。
type Message struct {
	Topic string
	Title string
	Body  string
	Data  map[string]string
}

// TopicError はトピック購読操作で失敗したトークンの情報。
// Indexは操作に渡したトークンスライス内の位置。
type TopicError struct {
	Index  int
	Reason string
}

// TopicResult はトピック購読操作の結果。
type TopicResult struct {
	SuccessCount int
	FailureCount int
	Errors       []TopicError
}

// PushProvider はプッシュ通知基盤を抽象化するインターフェース。
type PushProvider interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	Send(ctx context.Context, msg *Message) error
}

// LogProvider は実際には配信せず、操作内容をログに出力するPushProvider。
// Firebaseの認証情報が設定されていないローカル環境で使用する。
type LogProvider struct {
	Logger *slog.Logger
}

func (p *LogProvider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// SubscribeToTopic は常に全トークン成功として扱う。
func (p *LogProvider) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	p.logger().Debug("トピック購読（ログのみ）", slog.String("topic", topic), slog.Int("token_count", len(tokens)))
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

// UnsubscribeFromTopic は常に全トークン成功として扱う。
func (p *LogProvider) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	p.logger().Debug("トピック購読解除（ログのみ）", slog.String("topic", topic), slog.Int("token_count", len(tokens)))
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

// Send は通知内容をログに出力する。
func (p *LogProvider) Send(ctx context.Context, msg *Message) error {
	p.logger().Info("通知送信（ログのみ）",
		slog.String("topic", msg.Topic),
		slog.String("title", msg.Title),
		slog.String("body", msg.Body),
	)
	return nil
}

var _ PushProvider = (*LogProvider)(nil)
