package notification

import (
	"context"
	"log/slog"

	"github.com/hitoshi/bptogether/internal/metrics"
)

// maxTokensPerRequest はFCMのトピック購読APIが1回に受け付けるトークン数の上限。
const maxTokensPerRequest = 1000

// Fanout はトピックの購読管理と送信を行う。
// 購読・送信の失敗はログとメトリクスに記録するのみで、呼び出し元には返さない。
type Fanout struct {
	provider PushProvider
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewFanout はFanoutを生成する。mcがnilの場合はメトリクスを記録しない。
func NewFanout(provider PushProvider, logger *slog.Logger, mc metrics.MetricsCollector) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Fanout{provider: provider, logger: logger, metrics: mc}
}

// Subscribe はトークンをトピックに購読させる。冪等でベストエフォート。
// トークンが空の場合は何もしない。
func (f *Fanout) Subscribe(ctx context.Context, tokens []string, topic string) {
	f.apply(ctx, metrics.OpSubscribe, tokens, topic, f.provider.SubscribeToTopic)
}

// Unsubscribe はトークンのトピック購読を解除する。冪等でベストエフォート。
// トークンが空の場合は何もしない。
func (f *Fanout) Unsubscribe(ctx context.Context, tokens []string, topic string) {
	f.apply(ctx, metrics.OpUnsubscribe, tokens, topic, f.provider.UnsubscribeFromTopic)
}

type topicOp func(ctx context.Context, tokens []string, topic string) (*TopicResult, error)

func (f *Fanout) apply(ctx context.Context, op string, tokens []string, topic string, fn topicOp) {
	for start := 0; start < len(tokens); start += maxTokensPerRequest {
		end := min(start+maxTokensPerRequest, len(tokens))
		batch := tokens[start:end]

		res, err := fn(ctx, batch, topic)
		if err != nil {
			f.metrics.RecordTopicError(op)
			f.logger.Error("トピック操作に失敗しました",
				slog.String("op", op),
				slog.String("topic", topic),
				slog.Int("token_count", len(batch)),
				slog.String("error", err.Error()),
			)
			continue
		}

		f.metrics.RecordTopicTokens(op, res.SuccessCount, res.FailureCount)
		if res.FailureCount > 0 {
			reasons := make([]string, 0, len(res.Errors))
			for _, e := range res.Errors {
				reasons = append(reasons, e.Reason)
			}
			f.logger.Warn("一部のトークンでトピック操作に失敗しました",
				slog.String("op", op),
				slog.String("topic", topic),
				slog.Int("success_count", res.SuccessCount),
				slog.Int("failure_count", res.FailureCount),
				slog.Any("reasons", reasons),
			)
		}
	}
}

// SendToTopic はトピック宛てに通知を送信する。
// 送信失敗はログとメトリクスに記録し、再送はしない。
func (f *Fanout) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) {
	kind := data["type"]
	err := f.provider.Send(ctx, &Message{
		Topic: topic,
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		f.metrics.RecordNotificationFailure(kind)
		f.logger.Error("通知の送信に失敗しました",
			slog.String("topic", topic),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return
	}

	f.metrics.RecordNotificationSent(kind)
	f.logger.Info("通知を送信しました",
		slog.String("topic", topic),
		slog.String("kind", kind),
	)
}
