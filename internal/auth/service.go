// Package auth はFirebase IDトークンによる認証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bptogether/internal/model"
)

// IdentityProvider は外部IdPのインターフェース。
type IdentityProvider interface {
	// VerifyIDToken はIDトークンを検証し、ユーザー情報を返す。
	VerifyIDToken(ctx context.Context, idToken string) (*model.Identity, error)
	// DeleteUser は外部IdPのアカウントを削除する。
	DeleteUser(ctx context.Context, uid string) error
}

// UserProvisioner は検証済みのIdP情報からユーザーを取得または作成する。
type UserProvisioner interface {
	FindOrCreate(ctx context.Context, identity *model.Identity) (*model.User, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp    IdentityProvider
	users  UserProvisioner
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(idp IdentityProvider, users UserProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{idp: idp, users: users, logger: logger}
}

// Authenticate はIDトークンを検証し、対応するユーザーを返す。
// 未登録のユーザーは自動作成する。
// トークンが空または検証に失敗した場合はUNAUTHORIZEDエラーを返す。
func (s *Service) Authenticate(ctx context.Context, idToken string) (*model.User, error) {
	if idToken == "" {
		return nil, model.NewUnauthorizedError()
	}

	identity, err := s.idp.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Debug("IDトークンの検証に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError()
	}
	if identity.UID == "" {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	return user, nil
}
