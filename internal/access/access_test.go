package access

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/bptogether/internal/model"
)

type mockFinder struct {
	findFn func(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error)
	calls  int
}

func (m *mockFinder) Find(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error) {
	m.calls++
	if m.findFn != nil {
		return m.findFn(ctx, sharerID, viewerID)
	}
	return nil, nil
}

func grant(role model.Role) *mockFinder {
	return &mockFinder{
		findFn: func(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error) {
			return &model.SharedAccess{SharerID: sharerID, ViewerID: viewerID, Role: role}, nil
		},
	}
}

// 本人のデータは必要ロールに関わらず常に許可され、共有関係を参照しないことを検証
func TestCheckPermission_OwnerAlwaysAllowed(t *testing.T) {
	for _, required := range []model.Role{model.RoleViewer, model.RoleEditor} {
		finder := &mockFinder{}
		c := NewChecker(finder)

		ok, err := c.CheckPermission(context.Background(), "u1", "u1", required)
		if err != nil {
			t.Fatalf("CheckPermission returned error: %v", err)
		}
		if !ok {
			t.Errorf("本人は%sで許可されるべき", required)
		}
		if finder.calls != 0 {
			t.Errorf("本人の場合は共有関係を参照すべきではない: calls=%d", finder.calls)
		}
	}
}

func TestCheckPermission_RoleMatrix(t *testing.T) {
	tests := []struct {
		name     string
		granted  *model.Role
		required model.Role
		want     bool
	}{
		{"共有なし_VIEWER必要", nil, model.RoleViewer, false},
		{"共有なし_EDITOR必要", nil, model.RoleEditor, false},
		{"VIEWER付与_VIEWER必要", rolePtr(model.RoleViewer), model.RoleViewer, true},
		{"VIEWER付与_EDITOR必要", rolePtr(model.RoleViewer), model.RoleEditor, false},
		{"EDITOR付与_VIEWER必要", rolePtr(model.RoleEditor), model.RoleViewer, true},
		{"EDITOR付与_EDITOR必要", rolePtr(model.RoleEditor), model.RoleEditor, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &mockFinder{}
			if tt.granted != nil {
				finder = grant(*tt.granted)
			}
			c := NewChecker(finder)

			got, err := c.CheckPermission(context.Background(), "owner", "requester", tt.required)
			if err != nil {
				t.Fatalf("CheckPermission returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckPermission = %v, want %v", got, tt.want)
			}
		})
	}
}

// 共有関係は(sharer=owner, viewer=requester)の向きで参照されることを検証
func TestCheckPermission_LooksUpOwnerAsSharer(t *testing.T) {
	var gotSharer, gotViewer string
	finder := &mockFinder{
		findFn: func(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error) {
			gotSharer, gotViewer = sharerID, viewerID
			return nil, nil
		},
	}
	c := NewChecker(finder)

	_, _ = c.CheckPermission(context.Background(), "owner", "requester", model.RoleViewer)

	if gotSharer != "owner" || gotViewer != "requester" {
		t.Errorf("Find(%q, %q), want Find(owner, requester)", gotSharer, gotViewer)
	}
}

func TestCheckPermission_StorageErrorIsNotPermission(t *testing.T) {
	finder := &mockFinder{
		findFn: func(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := NewChecker(finder)

	ok, err := c.CheckPermission(context.Background(), "owner", "requester", model.RoleViewer)
	if err == nil {
		t.Fatal("expected error")
	}
	if ok {
		t.Error("ストレージエラー時に許可してはならない")
	}
}

func TestRequire_ReturnsForbidden(t *testing.T) {
	c := NewChecker(grant(model.RoleViewer))

	err := c.Require(context.Background(), "owner", "requester", model.RoleEditor)
	if !model.IsCode(err, model.ErrCodeForbidden) {
		t.Errorf("err = %v, want FORBIDDEN", err)
	}

	if err := c.Require(context.Background(), "owner", "requester", model.RoleViewer); err != nil {
		t.Errorf("VIEWER権限で読み取りは許可されるべき: %v", err)
	}
}

func rolePtr(r model.Role) *model.Role { return &r }
