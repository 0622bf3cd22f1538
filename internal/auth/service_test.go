package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/bptogether/internal/model"
)

// --- モック定義 ---

type mockIdentityProvider struct {
	verifyFn func(ctx context.Context, idToken string) (*model.Identity, error)
}

func (m *mockIdentityProvider) VerifyIDToken(ctx context.Context, idToken string) (*model.Identity, error) {
	return m.verifyFn(ctx, idToken)
}

func (m *mockIdentityProvider) DeleteUser(ctx context.Context, uid string) error {
	return nil
}

type mockProvisioner struct {
	findOrCreateFn func(ctx context.Context, identity *model.Identity) (*model.User, error)
	calls          int
}

func (m *mockProvisioner) FindOrCreate(ctx context.Context, identity *model.Identity) (*model.User, error) {
	m.calls++
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, identity)
	}
	return &model.User{ID: "user-" + identity.UID, FirebaseUID: identity.UID, Email: identity.Email}, nil
}

func validIdP() *mockIdentityProvider {
	return &mockIdentityProvider{
		verifyFn: func(ctx context.Context, idToken string) (*model.Identity, error) {
			if idToken != "good-token" {
				return nil, errors.New("token has expired")
			}
			return &model.Identity{UID: "fb-1", Email: "taro@example.com", Name: "Taro"}, nil
		},
	}
}

// --- テスト ---

func TestAuthenticate_ValidToken(t *testing.T) {
	users := &mockProvisioner{}
	svc := NewService(validIdP(), users, nil)

	u, err := svc.Authenticate(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if u.FirebaseUID != "fb-1" || u.Email != "taro@example.com" {
		t.Errorf("unexpected user: %+v", u)
	}
	if users.calls != 1 {
		t.Errorf("FindOrCreate called %d times, want 1", users.calls)
	}
}

func TestAuthenticate_Unauthorized(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"トークンなし", ""},
		{"検証失敗", "expired-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockProvisioner{}
			svc := NewService(validIdP(), users, nil)

			_, err := svc.Authenticate(context.Background(), tt.token)
			if !model.IsCode(err, model.ErrCodeUnauthorized) {
				t.Errorf("err = %v, want UNAUTHORIZED", err)
			}
			if users.calls != 0 {
				t.Error("認証失敗時はユーザーを作成すべきではない")
			}
		})
	}
}

func TestAuthenticate_EmptyUID(t *testing.T) {
	idp := &mockIdentityProvider{
		verifyFn: func(ctx context.Context, idToken string) (*model.Identity, error) {
			return &model.Identity{}, nil
		},
	}
	svc := NewService(idp, &mockProvisioner{}, nil)

	if _, err := svc.Authenticate(context.Background(), "token"); !model.IsCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("err = %v, want UNAUTHORIZED", err)
	}
}

// 認証は成功したがユーザー作成に失敗した場合はUNAUTHORIZEDではなく内部エラーとなることを検証
func TestAuthenticate_ProvisionError(t *testing.T) {
	users := &mockProvisioner{
		findOrCreateFn: func(ctx context.Context, identity *model.Identity) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(validIdP(), users, nil)

	_, err := svc.Authenticate(context.Background(), "good-token")
	if err == nil {
		t.Fatal("expected error")
	}
	if model.IsCode(err, model.ErrCodeUnauthorized) {
		t.Error("ユーザー作成の失敗はUNAUTHORIZEDとして扱うべきではない")
	}
}
