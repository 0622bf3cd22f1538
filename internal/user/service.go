// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/repository"
	"github.com/hitoshi/bptogether/internal/security"
)

// IdentityDeleter は外部IdPのアカウントを削除する。
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// Service はユーザー管理のサービス層。
// 初回ログイン時のユーザー作成、利用規約への同意、退会処理を提供する。
type Service struct {
	userRepo  repository.UserRepository
	idp       IdentityDeleter
	sanitizer security.TextSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// idpがnilの場合は退会時に外部IdPのアカウントを削除しない。
func NewService(
	userRepo repository.UserRepository,
	idp IdentityDeleter,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer(0)
	}
	return &Service{
		userRepo:  userRepo,
		idp:       idp,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// FindOrCreate は検証済みのIdP情報からユーザーを取得し、存在しなければ作成する。
// 既存ユーザーの場合はメールアドレスと表示名を最新の値に更新する。
func (s *Service) FindOrCreate(ctx context.Context, identity *model.Identity) (*model.User, error) {
	now := s.now()
	u, err := s.userRepo.UpsertByFirebaseUID(ctx, &model.User{
		ID:          uuid.NewString(),
		FirebaseUID: identity.UID,
		Email:       identity.Email,
		Name:        s.sanitizer.Sanitize(identity.Name),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得または作成に失敗しました: %w", err)
	}
	return u, nil
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// AcceptTerms は利用規約への同意日時を現在時刻で記録する。
func (s *Service) AcceptTerms(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.AcceptTerms(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("利用規約への同意の記録に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 関連データとユーザーを同一トランザクションで削除した後、外部IdPのアカウントを削除する。
// 外部IdPでの削除失敗はログに記録するのみでエラーとしない。
func (s *Service) Withdraw(ctx context.Context, u *model.User) error {
	s.logger.Info("退会処理を開始します",
		slog.String("user_id", u.ID),
	)

	deleted, err := s.userRepo.DeleteCascade(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	if s.idp != nil && u.FirebaseUID != "" {
		if err := s.idp.DeleteUser(ctx, u.FirebaseUID); err != nil {
			s.logger.Error("外部IdPのアカウント削除に失敗しました",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", u.ID),
	)
	return nil
}
