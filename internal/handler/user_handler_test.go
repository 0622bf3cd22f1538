package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/bptogether/internal/model"
)

func TestUserHandler_Me(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.Me(w, withUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var u model.User
	json.NewDecoder(w.Result().Body).Decode(&u)
	if u.ID != "alice" || u.Email != "alice@example.com" {
		t.Errorf("user = %+v", u)
	}
}

func TestUserHandler_Me_NoUser_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestUserHandler_AcceptTerms(t *testing.T) {
	accepted := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	h := NewUserHandler(&mockUserService{
		acceptTermsFn: func(ctx context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, TermsAcceptedAt: &accepted}, nil
		},
	})

	w := httptest.NewRecorder()
	h.AcceptTerms(w, withUser(httptest.NewRequest(http.MethodPost, "/api/users/terms", nil), "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var u model.User
	json.NewDecoder(w.Result().Body).Decode(&u)
	if u.TermsAcceptedAt == nil || !u.TermsAcceptedAt.Equal(accepted) {
		t.Errorf("termsAcceptedAt = %v, want %v", u.TermsAcceptedAt, accepted)
	}
}

func TestUserHandler_Withdraw_Success(t *testing.T) {
	withdrawCalled := false
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(ctx context.Context, u *model.User) error {
			withdrawCalled = true
			if u.ID != "user-123" || u.FirebaseUID != "fb-user-123" {
				t.Errorf("user = %+v", u)
			}
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.Withdraw(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/users", nil), "user-123"))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !withdrawCalled {
		t.Error("expected Withdraw to be called")
	}
}

func TestUserHandler_Withdraw_UserNotFound(t *testing.T) {
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(ctx context.Context, u *model.User) error {
			return model.NewUserNotFoundError()
		},
	})

	w := httptest.NewRecorder()
	h.Withdraw(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/users", nil), "ghost"))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestUserHandler_Withdraw_InternalError(t *testing.T) {
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(ctx context.Context, u *model.User) error {
			return errors.New("tx aborted")
		},
	})

	w := httptest.NewRecorder()
	h.Withdraw(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/users", nil), "alice"))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
