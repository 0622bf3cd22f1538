// Package access は共有関係に基づくデータアクセス権限の判定を提供する。
package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/bptogether/internal/model"
)

// SharedAccessFinder は共有者と閲覧者の組で共有関係を取得する。
type SharedAccessFinder interface {
	Find(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error)
}

// Checker は権限判定を行う。
type Checker struct {
	finder SharedAccessFinder
}

// NewChecker はCheckerを生成する。
func NewChecker(finder SharedAccessFinder) *Checker {
	return &Checker{finder: finder}
}

// CheckPermission はrequesterがownerのデータに対してrequired以上の権限を持つかどうかを返す。
//
//   - 本人は常に許可
//   - 共有関係がなければ拒否
//   - VIEWERが必要な場合はVIEWERとEDITORを許可、EDITORが必要な場合はEDITORのみ許可
//
// 共有関係の取得に失敗した場合はエラーを返し、許可として扱わない。
func (c *Checker) CheckPermission(ctx context.Context, ownerID, requesterID string, required model.Role) (bool, error) {
	if ownerID == requesterID {
		return true, nil
	}

	sa, err := c.finder.Find(ctx, ownerID, requesterID)
	if err != nil {
		return false, fmt.Errorf("共有関係の確認に失敗しました: %w", err)
	}
	if sa == nil {
		return false, nil
	}

	return satisfies(sa.Role, required), nil
}

// Require は権限がない場合にFORBIDDENエラーを返す。
func (c *Checker) Require(ctx context.Context, ownerID, requesterID string, required model.Role) error {
	ok, err := c.CheckPermission(ctx, ownerID, requesterID, required)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewForbiddenError(required)
	}
	return nil
}

func satisfies(granted, required model.Role) bool {
	switch required {
	case model.RoleViewer:
		return granted == model.RoleViewer || granted == model.RoleEditor
	case model.RoleEditor:
		return granted == model.RoleEditor
	default:
		return false
	}
}
