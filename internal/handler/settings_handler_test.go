package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/settings"
	"github.com/hitoshi/bptogether/internal/validation"
)

func intPtr(v int) *int { return &v }

func TestSettingsHandler_Get_NoSettingsReturnsEmptyObject(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{})

	w := httptest.NewRecorder()
	h.Get(w, withUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("body = %q, want {}", got)
	}
}

func TestSettingsHandler_Get_ReturnsCamelCase(t *testing.T) {
	hhmm := "07:30"
	h := NewSettingsHandler(&mockSettingsService{
		getFn: func(ctx context.Context, userID string) (*model.NotificationSetting, error) {
			return &model.NotificationSetting{
				UserID:          userID,
				SysHighAlert:    intPtr(180),
				ReminderEnabled: true,
				ReminderTime:    &hhmm,
				DailyTarget:     3,
			}, nil
		},
	}, &mockDeviceService{})

	w := httptest.NewRecorder()
	h.Get(w, withUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), "alice"))

	var body map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["sysHighAlert"] != float64(180) {
		t.Errorf("sysHighAlert = %v, want 180", body["sysHighAlert"])
	}
	if body["reminderTime"] != "07:30" || body["dailyTarget"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestSettingsHandler_Update_PassesPartialInput(t *testing.T) {
	var got settings.Input
	h := NewSettingsHandler(&mockSettingsService{
		upsertFn: func(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error) {
			got = in
			return &model.NotificationSetting{UserID: userID, SysHighAlert: in.SysHighAlert, DailyTarget: 2}, nil
		},
	}, &mockDeviceService{})

	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"sysHighAlert":130,"reminderEnabled":true}`))
	w := httptest.NewRecorder()
	h.Update(w, withUser(req, "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if got.SysHighAlert == nil || *got.SysHighAlert != 130 {
		t.Errorf("sysHighAlert = %v", got.SysHighAlert)
	}
	if got.ReminderEnabled == nil || !*got.ReminderEnabled {
		t.Errorf("reminderEnabled = %v", got.ReminderEnabled)
	}
	if got.DailyTarget != nil || got.ReminderTime != nil {
		t.Error("未指定のフィールドはnilのままであるべき")
	}
}

func TestSettingsHandler_Update_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"未知のフィールド", `{"userId":"someone-else"}`},
		{"閾値が範囲外", `{"sysHighAlert":401}`},
		{"時刻形式が不正", `{"reminderTime":"25:00"}`},
		{"目標回数が範囲外", `{"dailyTarget":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// サービス層と同じ検証を行うモック
			h := NewSettingsHandler(&mockSettingsService{
				upsertFn: func(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error) {
					if err := validation.Struct(in); err != nil {
						return nil, err
					}
					t.Fatal("invalid input should not be saved")
					return nil, nil
				},
			}, &mockDeviceService{})

			req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Update(w, withUser(req, "alice"))

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestSettingsHandler_RegisterDevice(t *testing.T) {
	var gotUser, gotToken, gotPlatform string
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{
		registerFn: func(ctx context.Context, userID, token, platform string) error {
			gotUser, gotToken, gotPlatform = userID, token, platform
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/settings/device", strings.NewReader(`{"token":"fcm-abc","platform":"<b>ios</b>"}`))
	w := httptest.NewRecorder()
	h.RegisterDevice(w, withUser(req, "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotUser != "alice" || gotToken != "fcm-abc" {
		t.Errorf("user = %q, token = %q", gotUser, gotToken)
	}
	if gotPlatform != "ios" {
		t.Errorf("platform = %q, want %q (sanitized)", gotPlatform, "ios")
	}
}

func TestSettingsHandler_RegisterDevice_InvalidToken(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{
		registerFn: func(ctx context.Context, userID, token, platform string) error {
			return model.NewInvalidTokenError()
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/settings/device", strings.NewReader(`{"token":"stale"}`))
	w := httptest.NewRecorder()
	h.RegisterDevice(w, withUser(req, "alice"))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeInvalidToken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidToken)
	}
}

func TestSettingsHandler_RegisterDevice_TokenRequired(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{})

	req := httptest.NewRequest(http.MethodPost, "/api/settings/device", strings.NewReader(`{"platform":"web"}`))
	w := httptest.NewRecorder()
	h.RegisterDevice(w, withUser(req, "alice"))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestSettingsHandler_UnregisterDevice(t *testing.T) {
	var gotToken string
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{
		unregisterFn: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.UnregisterDevice(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/settings/device?token=fcm-abc", nil), "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotToken != "fcm-abc" {
		t.Errorf("token = %q, want %q", gotToken, "fcm-abc")
	}

	// tokenなしは400
	w2 := httptest.NewRecorder()
	h.UnregisterDevice(w2, withUser(httptest.NewRequest(http.MethodDelete, "/api/settings/device", nil), "alice"))
	if w2.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w2.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestSettingsHandler_DeviceStatus(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{}, &mockDeviceService{
		existsFn: func(ctx context.Context, token string) (bool, error) {
			return token == "known", nil
		},
	})

	for token, want := range map[string]bool{"known": true, "unknown": false} {
		w := httptest.NewRecorder()
		h.DeviceStatus(w, withUser(httptest.NewRequest(http.MethodGet, "/api/settings/device-status?token="+token, nil), "alice"))

		var resp deviceStatusResponse
		json.NewDecoder(w.Result().Body).Decode(&resp)
		if resp.Registered != want {
			t.Errorf("token %q: registered = %v, want %v", token, resp.Registered, want)
		}
	}
}

func TestSettingsHandler_Update_EmptyReminderTimeReachesService(t *testing.T) {
	called := false
	h := NewSettingsHandler(&mockSettingsService{
		upsertFn: func(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error) {
			called = true
			if in.ReminderTime == nil || *in.ReminderTime != "" {
				t.Errorf("reminderTime = %v, want pointer to empty string", in.ReminderTime)
			}
			return &model.NotificationSetting{UserID: userID}, nil
		},
	}, &mockDeviceService{})

	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"reminderTime":""}`))
	w := httptest.NewRecorder()
	h.Update(w, withUser(req, "alice"))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !called {
		t.Error("service should be called")
	}
}
