package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/repository"
)

// NotifiedSharerLister は閲覧者が通知を有効にしている共有者の一覧を取得する。
type NotifiedSharerLister interface {
	ListNotifiedSharerIDs(ctx context.Context, viewerID string) ([]string, error)
}

// Service はデバイストークンの登録と解除を扱うサービス層。
type Service struct {
	tokens   repository.DeviceTokenRepository
	sharers  NotifiedSharerLister
	provider PushProvider
	fanout   *Fanout
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tokens repository.DeviceTokenRepository,
	sharers NotifiedSharerLister,
	provider PushProvider,
	fanout *Fanout,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tokens:   tokens,
		sharers:  sharers,
		provider: provider,
		fanout:   fanout,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterToken はデバイストークンを登録する。
// 先に自分のトピックへの購読を行い、失敗した場合は古い登録を削除してINVALID_TOKENを返す。
// 購読に成功した場合のみトークンを保存し、通知を有効にしている共有者のトピックにも購読させる。
func (s *Service) RegisterToken(ctx context.Context, userID, token, platform string) error {
	if platform == "" {
		platform = model.DefaultPlatform
	}

	topic := TopicForUser(userID)
	res, err := s.provider.SubscribeToTopic(ctx, []string{token}, topic)
	if err != nil || res == nil || res.FailureCount > 0 {
		attrs := []any{
			slog.String("user_id", userID),
			slog.String("topic", topic),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		} else if res != nil && len(res.Errors) > 0 {
			attrs = append(attrs, slog.String("reason", res.Errors[0].Reason))
		}
		s.logger.Warn("通知トークンのトピック購読に失敗したため登録を拒否します", attrs...)

		if _, delErr := s.tokens.DeleteByToken(ctx, token); delErr != nil {
			s.logger.Error("無効な通知トークンの削除に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", delErr.Error()),
			)
		}
		return model.NewInvalidTokenError()
	}

	now := s.now()
	if err := s.tokens.Upsert(ctx, &model.DeviceToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("通知トークンの保存に失敗しました: %w", err)
	}

	// 共有者トピックへの追加購読はベストエフォート
	sharerIDs, err := s.sharers.ListNotifiedSharerIDs(ctx, userID)
	if err != nil {
		s.logger.Error("通知対象の共有者の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	for _, sharerID := range sharerIDs {
		s.fanout.Subscribe(ctx, []string{token}, TopicForUser(sharerID))
	}

	s.logger.Info("通知トークンを登録しました",
		slog.String("user_id", userID),
		slog.String("platform", platform),
		slog.Int("watched_count", len(sharerIDs)),
	)
	return nil
}

// UnregisterToken はデバイストークンの登録を削除する。
// トピックの購読解除は行わない。FCM側で無効になったトークンは自然に配信対象から外れる。
func (s *Service) UnregisterToken(ctx context.Context, token string) error {
	if _, err := s.tokens.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("通知トークンの削除に失敗しました: %w", err)
	}
	return nil
}

// IsTokenRegistered はデバイストークンが登録済みかどうかを返す。
func (s *Service) IsTokenRegistered(ctx context.Context, token string) (bool, error) {
	ok, err := s.tokens.Exists(ctx, token)
	if err != nil {
		return false, fmt.Errorf("通知トークンの確認に失敗しました: %w", err)
	}
	return ok, nil
}
