package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/security"
	"github.com/hitoshi/bptogether/internal/settings"
)

// SettingsServiceInterface は通知設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.NotificationSetting, error)
	Upsert(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error)
}

// DeviceServiceInterface はデバイストークン管理に必要なサービスインターフェース。
type DeviceServiceInterface interface {
	RegisterToken(ctx context.Context, userID, token, platform string) error
	UnregisterToken(ctx context.Context, token string) error
	IsTokenRegistered(ctx context.Context, token string) (bool, error)
}

// SettingsHandler は通知設定とデバイストークンのHTTPハンドラー。
type SettingsHandler struct {
	settings  SettingsServiceInterface
	devices   DeviceServiceInterface
	sanitizer security.TextSanitizer
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(settings SettingsServiceInterface, devices DeviceServiceInterface) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		devices:   devices,
		sanitizer: security.NewTextSanitizer(32),
	}
}

// registerDeviceRequest はデバイストークン登録リクエストのボディ。
type registerDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,max=32"`
}

// deviceStatusResponse はデバイストークンの登録状況。
type deviceStatusResponse struct {
	Registered bool `json:"registered"`
}

// Get は通知設定を返す。未作成の場合は空オブジェクトを返す。
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	setting, err := h.settings.Get(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if setting == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// Update は通知設定を更新する。指定されたフィールドのみ上書きする。
// PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// 入力の検証はreminderTimeの解除を考慮してサービス層で行う
	var in settings.Input
	if err := decodeStrict(r, &in); err != nil {
		handleServiceError(w, err)
		return
	}

	setting, err := h.settings.Upsert(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// RegisterDevice はプッシュ通知用のデバイストークンを登録する。
// POST /api/settings/device
func (h *SettingsHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	platform := h.sanitizer.Sanitize(req.Platform)
	if err := h.devices.RegisterToken(r.Context(), user.ID, req.Token, platform); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// UnregisterDevice はデバイストークンの登録を解除する。
// DELETE /api/settings/device?token=
func (h *SettingsHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		handleServiceError(w, model.NewInvalidRequestError("token は必須です"))
		return
	}

	if err := h.devices.UnregisterToken(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// DeviceStatus はデバイストークンが登録済みかどうかを返す。
// GET /api/settings/device-status?token=
func (h *SettingsHandler) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		handleServiceError(w, model.NewInvalidRequestError("token は必須です"))
		return
	}

	registered, err := h.devices.IsTokenRegistered(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deviceStatusResponse{Registered: registered})
}
