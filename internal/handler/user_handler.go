package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bptogether/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// AcceptTerms は利用規約への同意日時を記録し、更新後のユーザーを返す。
	AcceptTerms(ctx context.Context, userID string) (*model.User, error)
	// Withdraw はユーザーの全データと外部IdPのアカウントを削除する。
	Withdraw(ctx context.Context, u *model.User) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Me は認証済みユーザーの情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// AcceptTerms は利用規約への同意を記録する。
// POST /api/users/terms
func (h *UserHandler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	updated, err := h.service.AcceptTerms(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
