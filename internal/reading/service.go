// Package reading は血圧測定記録の作成・更新・削除・取得を提供する。
// 他ユーザーの記録を扱う場合は共有関係に基づく権限が必要となる。
package reading

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/repository"
)

// PermissionChecker は対象ユーザーのデータへの権限を確認する。
type PermissionChecker interface {
	Require(ctx context.Context, ownerID, requesterID string, required model.Role) error
}

// AlertDispatcher は測定記録の閾値チェックと通知をバックグラウンドで行う。
type AlertDispatcher interface {
	Dispatch(ctx context.Context, r *model.Reading, owner *model.User)
}

// UserFinder はIDでユーザーを取得する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Service は測定記録のサービス層。
type Service struct {
	readings repository.ReadingRepository
	access   PermissionChecker
	users    UserFinder
	alerts   AlertDispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// alertsがnilの場合は閾値チェックを行わない。
func NewService(
	readings repository.ReadingRepository,
	access PermissionChecker,
	users UserFinder,
	alerts AlertDispatcher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		readings: readings,
		access:   access,
		users:    users,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// target は対象ユーザーIDが省略された場合に本人を対象とする。
func target(requesterID, targetID string) string {
	if targetID == "" {
		return requesterID
	}
	return targetID
}

// Create は測定記録を作成する。EDITOR権限が必要。
// 作成後、記録者の通知設定に基づく閾値チェックを非同期で行う。
// 閾値チェックや通知の失敗は作成結果に影響しない。
func (s *Service) Create(ctx context.Context, requester *model.User, targetID string, in model.ReadingInput) (*model.Reading, error) {
	ownerID := target(requester.ID, targetID)
	if err := s.access.Require(ctx, ownerID, requester.ID, model.RoleEditor); err != nil {
		return nil, err
	}

	r := s.newReading(ownerID, in)
	if err := s.readings.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("測定記録の作成に失敗しました: %w", err)
	}

	s.logger.Info("測定記録を作成しました",
		slog.String("record_id", r.ID),
		slog.String("user_id", ownerID),
		slog.String("requester_id", requester.ID),
	)

	if s.alerts != nil {
		s.alerts.Dispatch(ctx, r, s.owner(ctx, requester, ownerID))
	}
	return r, nil
}

// BulkCreate は複数の測定記録を一括で作成し、作成件数を返す。EDITOR権限が必要。
// 一括作成では閾値チェックを行わない。
func (s *Service) BulkCreate(ctx context.Context, requesterID, targetID string, inputs []model.ReadingInput) (int, error) {
	if len(inputs) == 0 {
		return 0, model.NewInvalidRequestError("記録が1件もありません")
	}

	ownerID := target(requesterID, targetID)
	if err := s.access.Require(ctx, ownerID, requesterID, model.RoleEditor); err != nil {
		return 0, err
	}

	readings := make([]*model.Reading, 0, len(inputs))
	for _, in := range inputs {
		readings = append(readings, s.newReading(ownerID, in))
	}

	n, err := s.readings.BulkCreate(ctx, readings)
	if err != nil {
		return 0, fmt.Errorf("測定記録の一括作成に失敗しました: %w", err)
	}

	s.logger.Info("測定記録を一括作成しました",
		slog.String("user_id", ownerID),
		slog.Int("count", n),
	)
	return n, nil
}

// Update は測定記録を部分更新する。EDITOR権限が必要。
// 記録が存在しない、または対象ユーザーのものでない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, requesterID, targetID, recordID string, patch model.ReadingPatch) (*model.Reading, error) {
	ownerID := target(requesterID, targetID)
	if err := s.access.Require(ctx, ownerID, requesterID, model.RoleEditor); err != nil {
		return nil, err
	}

	r, err := s.findOwned(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	if patch.Systolic != nil {
		r.Systolic = *patch.Systolic
	}
	if patch.Diastolic != nil {
		r.Diastolic = *patch.Diastolic
	}
	if patch.Pulse != nil {
		r.Pulse = *patch.Pulse
	}
	if patch.RecordedAt != nil {
		r.RecordedAt = *patch.RecordedAt
	}
	r.UpdatedAt = s.now()

	if err := s.readings.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("測定記録の更新に失敗しました: %w", err)
	}
	return r, nil
}

// Delete は測定記録を削除する。EDITOR権限が必要。
// 記録が存在しない、または対象ユーザーのものでない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, requesterID, targetID, recordID string) error {
	ownerID := target(requesterID, targetID)
	if err := s.access.Require(ctx, ownerID, requesterID, model.RoleEditor); err != nil {
		return err
	}

	if _, err := s.findOwned(ctx, ownerID, recordID); err != nil {
		return err
	}

	if err := s.readings.Delete(ctx, recordID); err != nil {
		return fmt.Errorf("測定記録の削除に失敗しました: %w", err)
	}
	return nil
}

// List は測定記録をrecorded_at降順で返す。VIEWER以上の権限が必要。
func (s *Service) List(ctx context.Context, requesterID, targetID string, q model.ReadingQuery) ([]*model.Reading, error) {
	ownerID := target(requesterID, targetID)
	if err := s.access.Require(ctx, ownerID, requesterID, model.RoleViewer); err != nil {
		return nil, err
	}

	list, err := s.readings.ListByUser(ctx, ownerID, q)
	if err != nil {
		return nil, fmt.Errorf("測定記録一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

func (s *Service) newReading(ownerID string, in model.ReadingInput) *model.Reading {
	now := s.now()
	recordedAt := now
	if in.RecordedAt != nil {
		recordedAt = *in.RecordedAt
	}
	return &model.Reading{
		ID:         uuid.NewString(),
		UserID:     ownerID,
		Systolic:   in.Systolic,
		Diastolic:  in.Diastolic,
		Pulse:      in.Pulse,
		RecordedAt: recordedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Service) findOwned(ctx context.Context, ownerID, recordID string) (*model.Reading, error) {
	r, err := s.readings.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("測定記録の取得に失敗しました: %w", err)
	}
	if r == nil || r.UserID != ownerID {
		return nil, model.NewRecordNotFoundError(recordID)
	}
	return r, nil
}

// owner は通知文面に使う記録者を返す。取得に失敗しても通知は行うためnilを許容する。
func (s *Service) owner(ctx context.Context, requester *model.User, ownerID string) *model.User {
	if requester.ID == ownerID {
		return requester
	}
	u, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		s.logger.Warn("記録者の取得に失敗しました",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return u
}
