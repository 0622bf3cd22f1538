package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/hitoshi/bptogether/internal/model"
)

// FirebaseConfig はFirebase Admin SDKの初期化設定。
type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string // サービスアカウントのJSON
}

// NewFirebaseApp はサービスアカウントの資格情報でFirebaseアプリを初期化する。
func NewFirebaseApp(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	var conf *firebase.Config
	if cfg.ProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// firebaseAuthClient はFirebase Authクライアントのうち使用するメソッド。
// *fbauth.Clientが満たす。
type firebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	DeleteUser(ctx context.Context, uid string) error
}

// FirebaseIdentityProvider はFirebase AuthenticationのIDトークン検証とアカウント削除を提供する。
type FirebaseIdentityProvider struct {
	client firebaseAuthClient
}

// NewFirebaseIdentityProvider はFirebaseIdentityProviderを生成する。
func NewFirebaseIdentityProvider(client firebaseAuthClient) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

// NewFirebaseIdentityProviderFromApp はFirebaseアプリからAuthクライアントを取得してFirebaseIdentityProviderを生成する。
func NewFirebaseIdentityProviderFromApp(ctx context.Context, app *firebase.App) (*FirebaseIdentityProvider, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return NewFirebaseIdentityProvider(client), nil
}

// VerifyIDToken はIDトークンを検証し、ユーザー情報を返す。
func (p *FirebaseIdentityProvider) VerifyIDToken(ctx context.Context, idToken string) (*model.Identity, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	return &model.Identity{
		UID:   token.UID,
		Email: claimString(token.Claims, "email"),
		Name:  claimString(token.Claims, "name"),
	}, nil
}

// DeleteUser はFirebase Authenticationのアカウントを削除する。
func (p *FirebaseIdentityProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete firebase user: %w", err)
	}
	return nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// compile-time interface check
var _ IdentityProvider = (*FirebaseIdentityProvider)(nil)
