package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bptogether/internal/middleware"
	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/settings"
)

// withUser はリクエストコンテキストに認証済みユーザーを注入する。
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), &model.User{
		ID:          userID,
		FirebaseUID: "fb-" + userID,
		Email:       userID + "@example.com",
		Name:        userID,
	}))
}

// --- RecordServiceInterface ---

type mockRecordService struct {
	createFn     func(ctx context.Context, requester *model.User, targetID string, in model.ReadingInput) (*model.Reading, error)
	bulkCreateFn func(ctx context.Context, requesterID, targetID string, inputs []model.ReadingInput) (int, error)
	updateFn     func(ctx context.Context, requesterID, targetID, recordID string, patch model.ReadingPatch) (*model.Reading, error)
	deleteFn     func(ctx context.Context, requesterID, targetID, recordID string) error
	listFn       func(ctx context.Context, requesterID, targetID string, q model.ReadingQuery) ([]*model.Reading, error)
}

func (m *mockRecordService) Create(ctx context.Context, requester *model.User, targetID string, in model.ReadingInput) (*model.Reading, error) {
	if m.createFn != nil {
		return m.createFn(ctx, requester, targetID, in)
	}
	return &model.Reading{ID: "rec-1", UserID: requester.ID, Systolic: in.Systolic, Diastolic: in.Diastolic, Pulse: in.Pulse}, nil
}

func (m *mockRecordService) BulkCreate(ctx context.Context, requesterID, targetID string, inputs []model.ReadingInput) (int, error) {
	if m.bulkCreateFn != nil {
		return m.bulkCreateFn(ctx, requesterID, targetID, inputs)
	}
	return len(inputs), nil
}

func (m *mockRecordService) Update(ctx context.Context, requesterID, targetID, recordID string, patch model.ReadingPatch) (*model.Reading, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requesterID, targetID, recordID, patch)
	}
	return &model.Reading{ID: recordID}, nil
}

func (m *mockRecordService) Delete(ctx context.Context, requesterID, targetID, recordID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, targetID, recordID)
	}
	return nil
}

func (m *mockRecordService) List(ctx context.Context, requesterID, targetID string, q model.ReadingQuery) ([]*model.Reading, error) {
	if m.listFn != nil {
		return m.listFn(ctx, requesterID, targetID, q)
	}
	return nil, nil
}

// --- SettingsServiceInterface / DeviceServiceInterface ---

type mockSettingsService struct {
	getFn    func(ctx context.Context, userID string) (*model.NotificationSetting, error)
	upsertFn func(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error)
}

func (m *mockSettingsService) Get(ctx context.Context, userID string) (*model.NotificationSetting, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSettingsService) Upsert(ctx context.Context, userID string, in settings.Input) (*model.NotificationSetting, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, in)
	}
	return &model.NotificationSetting{UserID: userID, DailyTarget: model.DefaultDailyTarget}, nil
}

type mockDeviceService struct {
	registerFn   func(ctx context.Context, userID, token, platform string) error
	unregisterFn func(ctx context.Context, token string) error
	existsFn     func(ctx context.Context, token string) (bool, error)
}

func (m *mockDeviceService) RegisterToken(ctx context.Context, userID, token, platform string) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, userID, token, platform)
	}
	return nil
}

func (m *mockDeviceService) UnregisterToken(ctx context.Context, token string) error {
	if m.unregisterFn != nil {
		return m.unregisterFn(ctx, token)
	}
	return nil
}

func (m *mockDeviceService) IsTokenRegistered(ctx context.Context, token string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, token)
	}
	return false, nil
}

// --- ShareServiceInterface ---

type mockShareService struct {
	generateFn     func(ctx context.Context, ownerID string, role model.Role) (*model.ShareCode, error)
	redeemFn       func(ctx context.Context, viewerID, code string) (*model.SharedAccess, error)
	withMeFn       func(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error)
	byMeFn         func(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error)
	removeEitherFn func(ctx context.Context, me, other string) error
	toggleFn       func(ctx context.Context, viewerID, sharerID string, enabled bool) (*model.SharedAccess, error)
}

func (m *mockShareService) GenerateCode(ctx context.Context, ownerID string, role model.Role) (*model.ShareCode, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, ownerID, role)
	}
	return &model.ShareCode{Code: "123456", UserID: ownerID, Role: role}, nil
}

func (m *mockShareService) RedeemCode(ctx context.Context, viewerID, code string) (*model.SharedAccess, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, viewerID, code)
	}
	return &model.SharedAccess{SharerID: "owner", ViewerID: viewerID, Role: model.RoleViewer, NotificationsEnabled: true}, nil
}

func (m *mockShareService) ListSharedWithMe(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error) {
	if m.withMeFn != nil {
		return m.withMeFn(ctx, viewerID)
	}
	return nil, nil
}

func (m *mockShareService) ListSharedByMe(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error) {
	if m.byMeFn != nil {
		return m.byMeFn(ctx, sharerID)
	}
	return nil, nil
}

func (m *mockShareService) RemoveEither(ctx context.Context, me, other string) error {
	if m.removeEitherFn != nil {
		return m.removeEitherFn(ctx, me, other)
	}
	return nil
}

func (m *mockShareService) ToggleNotification(ctx context.Context, viewerID, sharerID string, enabled bool) (*model.SharedAccess, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, viewerID, sharerID, enabled)
	}
	return &model.SharedAccess{SharerID: sharerID, ViewerID: viewerID, NotificationsEnabled: enabled}, nil
}

// --- UserServiceInterface ---

type mockUserService struct {
	acceptTermsFn func(ctx context.Context, userID string) (*model.User, error)
	withdrawFn    func(ctx context.Context, u *model.User) error
}

func (m *mockUserService) AcceptTerms(ctx context.Context, userID string) (*model.User, error) {
	if m.acceptTermsFn != nil {
		return m.acceptTermsFn(ctx, userID)
	}
	return &model.User{ID: userID}, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, u *model.User) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, u)
	}
	return nil
}

// --- middleware.Authenticator ---

type mockAuthenticator struct {
	users map[string]*model.User // token -> user
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, idToken string) (*model.User, error) {
	if u, ok := m.users[idToken]; ok {
		return u, nil
	}
	return nil, model.NewUnauthorizedError()
}
