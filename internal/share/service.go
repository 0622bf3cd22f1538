// Package share は共有コードの発行・引き換えと共有関係の管理を提供する。
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/metrics"
	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/notification"
	"github.com/hitoshi/bptogether/internal/repository"
)

// TokenLister はユーザーのデバイストークン一覧を取得する。
type TokenLister interface {
	ListTokensByUser(ctx context.Context, userID string) ([]string, error)
}

// TopicSubscriber はトピック購読をベストエフォートで管理する。
type TopicSubscriber interface {
	Subscribe(ctx context.Context, tokens []string, topic string)
	Unsubscribe(ctx context.Context, tokens []string, topic string)
}

// Service は共有コードと共有関係のサービス層。
type Service struct {
	codes    repository.ShareCodeRepository
	accesses repository.SharedAccessRepository
	tokens   TokenLister
	topics   TopicSubscriber
	metrics  metrics.MetricsCollector
	logger   *slog.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	codes repository.ShareCodeRepository,
	accesses repository.SharedAccessRepository,
	tokens TokenLister,
	topics TopicSubscriber,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		codes:    codes,
		accesses: accesses,
		tokens:   tokens,
		topics:   topics,
		metrics:  mc,
		logger:   logger,
		now:      time.Now,
		generate: randomCode,
	}
}

// GenerateCode は指定ロールの共有コードを発行する。有効期限は発行から10分。
// コード値が既存のものと衝突した場合は新しい値で再試行し、
// 成功するか、衝突以外のエラーが発生するか、ctxがキャンセルされるまで繰り返す。
func (s *Service) GenerateCode(ctx context.Context, ownerID string, role model.Role) (*model.ShareCode, error) {
	if !role.Valid() {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("不明なロールです: %q", role))
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("共有コードの発行が中断されました: %w", err)
		}

		code, err := s.generate()
		if err != nil {
			return nil, err
		}

		now := s.now()
		sc := &model.ShareCode{
			ID:        uuid.NewString(),
			Code:      code,
			UserID:    ownerID,
			Role:      role,
			ExpiresAt: now.Add(model.ShareCodeTTL),
			CreatedAt: now,
		}

		err = s.codes.Create(ctx, sc)
		if errors.Is(err, repository.ErrDuplicateShareCode) {
			s.logger.Debug("共有コードが衝突したため再生成します", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("共有コードの発行に失敗しました: %w", err)
		}

		s.logger.Info("共有コードを発行しました",
			slog.String("user_id", ownerID),
			slog.String("role", string(role)),
			slog.Int("attempt", attempt),
		)
		return sc, nil
	}
}

// RedeemCode は共有コードを引き換えて共有関係を成立させる。
// 検証順序は 存在しない → 使用済み → 期限切れ → 自分自身 で、最初に該当したエラーを返す。
// 同じ閲覧者との共有関係が既にある場合はロールを上書きし、通知を有効に戻す。
// コミット後、閲覧者の全トークンを共有者のトピックに購読させる。
func (s *Service) RedeemCode(ctx context.Context, viewerID, code string) (*model.SharedAccess, error) {
	now := s.now()
	access, err := s.codes.Redeem(ctx, code, viewerID, func(sc *model.ShareCode) error {
		switch {
		case sc == nil:
			return model.NewInvalidCodeError()
		case sc.IsUsed:
			return model.NewCodeAlreadyUsedError()
		case sc.Expired(now):
			return model.NewCodeExpiredError()
		case sc.UserID == viewerID:
			return model.NewSelfShareNotAllowedError()
		}
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordShareCodeRedeem(apiErr.Code)
			return nil, err
		}
		s.metrics.RecordShareCodeRedeem(model.ErrCodeInternal)
		return nil, fmt.Errorf("共有コードの引き換えに失敗しました: %w", err)
	}
	s.metrics.RecordShareCodeRedeem("success")

	s.logger.Info("共有コードを引き換えました",
		slog.String("sharer_id", access.SharerID),
		slog.String("viewer_id", viewerID),
		slog.String("role", string(access.Role)),
	)

	s.syncSubscription(ctx, viewerID, access.SharerID, true)
	return access, nil
}

// RemoveAccess は共有関係を解除する。
// 閲覧者のトークンの共有者トピックからの購読解除はベストエフォートで先に行う。
func (s *Service) RemoveAccess(ctx context.Context, sharerID, viewerID string) error {
	existing, err := s.accesses.Find(ctx, sharerID, viewerID)
	if err != nil {
		return fmt.Errorf("共有関係の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewRelationshipNotFoundError()
	}

	s.syncSubscription(ctx, viewerID, sharerID, false)

	deleted, err := s.accesses.Delete(ctx, sharerID, viewerID)
	if err != nil {
		return fmt.Errorf("共有関係の解除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewRelationshipNotFoundError()
	}

	s.logger.Info("共有関係を解除しました",
		slog.String("sharer_id", sharerID),
		slog.String("viewer_id", viewerID),
	)
	return nil
}

// RemoveEither は自分と相手の共有関係をどちらの向きでも解除する。
// 自分が共有者の関係を先に試し、存在しなければ自分が閲覧者の関係を解除する。
func (s *Service) RemoveEither(ctx context.Context, me, other string) error {
	err := s.RemoveAccess(ctx, me, other)
	if !model.IsCode(err, model.ErrCodeRelationshipNotFound) {
		return err
	}
	return s.RemoveAccess(ctx, other, me)
}

// ToggleNotification は閲覧者が共有者の通知を受け取るかどうかを切り替える。
// フラグ更新後、閲覧者のトークンを共有者トピックに購読または購読解除する。
func (s *Service) ToggleNotification(ctx context.Context, viewerID, sharerID string, enabled bool) (*model.SharedAccess, error) {
	access, err := s.accesses.UpdateNotifications(ctx, sharerID, viewerID, enabled)
	if err != nil {
		return nil, fmt.Errorf("通知設定の更新に失敗しました: %w", err)
	}
	if access == nil {
		return nil, model.NewRelationshipNotFoundError()
	}

	s.syncSubscription(ctx, viewerID, sharerID, enabled)
	return access, nil
}

// ListSharedWithMe は自分に共有されている関係を共有者の情報付きで返す。
func (s *Service) ListSharedWithMe(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error) {
	list, err := s.accesses.ListByViewer(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("共有されている一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListSharedByMe は自分が共有している関係を閲覧者の情報付きで返す。
func (s *Service) ListSharedByMe(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error) {
	list, err := s.accesses.ListBySharer(ctx, sharerID)
	if err != nil {
		return nil, fmt.Errorf("共有している一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// syncSubscription は閲覧者の全トークンを共有者のトピックに購読または購読解除する。
// トークン取得の失敗もログのみで呼び出し元には返さない。
func (s *Service) syncSubscription(ctx context.Context, viewerID, sharerID string, subscribe bool) {
	tokens, err := s.tokens.ListTokensByUser(ctx, viewerID)
	if err != nil {
		s.logger.Error("閲覧者の通知トークン取得に失敗しました",
			slog.String("viewer_id", viewerID),
			slog.String("error", err.Error()),
		)
		return
	}

	topic := notification.TopicForUser(sharerID)
	if subscribe {
		s.topics.Subscribe(ctx, tokens, topic)
	} else {
		s.topics.Unsubscribe(ctx, tokens, topic)
	}
}
