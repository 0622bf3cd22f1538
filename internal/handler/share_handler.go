package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bptogether/internal/model"
)

// ShareServiceInterface は共有ハンドラーが必要とするサービスインターフェース。
type ShareServiceInterface interface {
	GenerateCode(ctx context.Context, ownerID string, role model.Role) (*model.ShareCode, error)
	RedeemCode(ctx context.Context, viewerID, code string) (*model.SharedAccess, error)
	ListSharedWithMe(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error)
	ListSharedByMe(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error)
	// RemoveEither は自分と相手の共有関係を、どちらの向きであっても解除する。
	RemoveEither(ctx context.Context, me, other string) error
	ToggleNotification(ctx context.Context, viewerID, sharerID string, enabled bool) (*model.SharedAccess, error)
}

// ShareHandler は共有コードと共有関係のHTTPハンドラー。
type ShareHandler struct {
	service ShareServiceInterface
}

// NewShareHandler はShareHandlerを生成する。
func NewShareHandler(service ShareServiceInterface) *ShareHandler {
	return &ShareHandler{service: service}
}

// generateCodeRequest は共有コード発行リクエストのボディ。roleを省略した場合はVIEWER。
type generateCodeRequest struct {
	Role model.Role `json:"role"`
}

// redeemCodeRequest は共有コード引き換えリクエストのボディ。
type redeemCodeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// toggleNotificationRequest は共有相手の通知設定変更リクエストのボディ。
type toggleNotificationRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Generate は共有コードを発行する。
// POST /api/share/generate
func (h *ShareHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req generateCodeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	role := req.Role
	if role == "" {
		role = model.RoleViewer
	}

	code, err := h.service.GenerateCode(r.Context(), user.ID, role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, code)
}

// Redeem は共有コードを引き換えて共有関係を成立させる。
// POST /api/share/redeem
func (h *ShareHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req redeemCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	access, err := h.service.RedeemCode(r.Context(), user.ID, strings.TrimSpace(req.Code))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, access)
}

// SharedWithMe は自分に共有されている関係の一覧を返す。
// GET /api/share/shared-with-me
func (h *ShareHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListSharedWithMe(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		list = []*model.SharedAccessWithUser{}
	}

	writeJSON(w, http.StatusOK, list)
}

// SharedByMe は自分が共有している関係の一覧を返す。
// GET /api/share/shared-by-me
func (h *ShareHandler) SharedByMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListSharedByMe(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		list = []*model.SharedAccessWithUser{}
	}

	writeJSON(w, http.StatusOK, list)
}

// Remove は相手との共有関係を解除する。共有者・閲覧者のどちらからでも解除できる。
// DELETE /api/share/{otherId}
func (h *ShareHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	otherID := chi.URLParam(r, "otherId")
	if err := checkOtherID(otherID); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.RemoveEither(r.Context(), user.ID, otherID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// ToggleNotifications は共有者の測定に関する通知の受信可否を切り替える。
// PUT /api/share/{otherId}/notifications
func (h *ShareHandler) ToggleNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req toggleNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	otherID := chi.URLParam(r, "otherId")
	if err := checkOtherID(otherID); err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := h.service.ToggleNotification(r.Context(), user.ID, otherID, *req.Enabled); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
