package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/bptogether/internal/model"
)

// mockAuthenticator はAuthenticatorのモック実装。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, idToken string) (*model.User, error)
	lastToken      string
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, idToken string) (*model.User, error) {
	m.lastToken = idToken
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, idToken)
	}
	return nil, model.NewUnauthorizedError()
}

func TestAuthMiddleware_ValidBearerToken_InjectsUser(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, idToken string) (*model.User, error) {
			return &model.User{ID: "user-auth-test", Email: "a@example.com"}, nil
		},
	}

	var captured *model.User
	handler := NewAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer id-token-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if authn.lastToken != "id-token-123" {
		t.Errorf("token = %q, want %q", authn.lastToken, "id-token-123")
	}
	if captured == nil || captured.ID != "user-auth-test" {
		t.Errorf("user in context = %+v, want ID user-auth-test", captured)
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, idToken string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}

	handler := NewAuthMiddleware(authn)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestAuthMiddleware_MissingOrMalformedHeader_Returns401(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"Bearerのみ", "Bearer"},
		{"空トークン", "Bearer   "},
		{"Basic認証", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := &mockAuthenticator{
				authenticateFn: func(ctx context.Context, idToken string) (*model.User, error) {
					t.Fatal("Authenticate should not be called")
					return nil, nil
				},
			}

			handler := NewAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_InvalidToken_Returns401(t *testing.T) {
	authn := &mockAuthenticator{}

	handler := NewAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ProvisioningFailure_Returns500(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, idToken string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := NewAuthMiddleware(authn)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Message == "connection refused" {
		t.Error("内部エラーの詳細がレスポンスに含まれてはならない")
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
}

func TestContextWithUser_RoundTrip(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &model.User{ID: "u-42"})

	id, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "u-42" {
		t.Errorf("id = %q, want %q", id, "u-42")
	}
}
