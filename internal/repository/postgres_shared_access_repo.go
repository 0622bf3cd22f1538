package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bptogether/internal/model"
)

const sharedAccessColumns = `id, sharer_id, viewer_id, role, notifications_enabled, created_at, updated_at`

// PostgresSharedAccessRepo はPostgreSQLを使用した共有関係リポジトリ。
type PostgresSharedAccessRepo struct {
	db *sql.DB
}

// NewPostgresSharedAccessRepo はPostgresSharedAccessRepoを生成する。
func NewPostgresSharedAccessRepo(db *sql.DB) *PostgresSharedAccessRepo {
	return &PostgresSharedAccessRepo{db: db}
}

func scanSharedAccess(row interface{ Scan(...any) error }) (*model.SharedAccess, error) {
	sa := &model.SharedAccess{}
	err := row.Scan(&sa.ID, &sa.SharerID, &sa.ViewerID, &sa.Role, &sa.NotificationsEnabled, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sa, nil
}

// Find は共有者と閲覧者の組で共有関係を取得する。見つからない場合はnilを返す。
func (r *PostgresSharedAccessRepo) Find(ctx context.Context, sharerID, viewerID string) (*model.SharedAccess, error) {
	sa, err := scanSharedAccess(r.db.QueryRowContext(ctx,
		`SELECT `+sharedAccessColumns+` FROM shared_accesses WHERE sharer_id = $1 AND viewer_id = $2`,
		sharerID, viewerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("共有関係の取得に失敗しました: %w", err)
	}
	return sa, nil
}

// Delete は共有関係を削除する。存在しなかった場合はfalseを返す。
func (r *PostgresSharedAccessRepo) Delete(ctx context.Context, sharerID, viewerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shared_accesses WHERE sharer_id = $1 AND viewer_id = $2`,
		sharerID, viewerID,
	)
	if err != nil {
		return false, fmt.Errorf("共有関係の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// UpdateNotifications は通知の有効・無効を更新する。見つからない場合はnilを返す。
func (r *PostgresSharedAccessRepo) UpdateNotifications(ctx context.Context, sharerID, viewerID string, enabled bool) (*model.SharedAccess, error) {
	sa, err := scanSharedAccess(r.db.QueryRowContext(ctx,
		`UPDATE shared_accesses SET notifications_enabled = $3, updated_at = now()
		 WHERE sharer_id = $1 AND viewer_id = $2
		 RETURNING `+sharedAccessColumns,
		sharerID, viewerID, enabled,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知設定の更新に失敗しました: %w", err)
	}
	return sa, nil
}

// ListByViewer は閲覧者に共有されている関係を共有者の情報付きで返す。
func (r *PostgresSharedAccessRepo) ListByViewer(ctx context.Context, viewerID string) ([]*model.SharedAccessWithUser, error) {
	return r.listWithUser(ctx,
		`SELECT sa.id, sa.sharer_id, sa.viewer_id, sa.role, sa.notifications_enabled, sa.created_at, sa.updated_at,
		        u.id, u.name, u.email
		 FROM shared_accesses sa
		 JOIN users u ON u.id = sa.sharer_id
		 WHERE sa.viewer_id = $1
		 ORDER BY sa.created_at`,
		viewerID, true,
	)
}

// ListBySharer は共有者が共有している関係を閲覧者の情報付きで返す。
func (r *PostgresSharedAccessRepo) ListBySharer(ctx context.Context, sharerID string) ([]*model.SharedAccessWithUser, error) {
	return r.listWithUser(ctx,
		`SELECT sa.id, sa.sharer_id, sa.viewer_id, sa.role, sa.notifications_enabled, sa.created_at, sa.updated_at,
		        u.id, u.name, u.email
		 FROM shared_accesses sa
		 JOIN users u ON u.id = sa.viewer_id
		 WHERE sa.sharer_id = $1
		 ORDER BY sa.created_at`,
		sharerID, false,
	)
}

// listWithUser は共有関係と相手ユーザーを結合したクエリを実行する。
// counterpartIsSharerがtrueの場合は相手ユーザーをSharerに、falseの場合はViewerに格納する。
func (r *PostgresSharedAccessRepo) listWithUser(ctx context.Context, query, id string, counterpartIsSharer bool) ([]*model.SharedAccessWithUser, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("共有一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := []*model.SharedAccessWithUser{}
	for rows.Next() {
		item := &model.SharedAccessWithUser{}
		u := &model.UserSummary{}
		err := rows.Scan(
			&item.ID, &item.SharerID, &item.ViewerID, &item.Role, &item.NotificationsEnabled, &item.CreatedAt, &item.UpdatedAt,
			&u.ID, &u.Name, &u.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("共有関係のスキャンに失敗しました: %w", err)
		}
		if counterpartIsSharer {
			item.Sharer = u
		} else {
			item.Viewer = u
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("共有一覧の読み込みに失敗しました: %w", err)
	}
	return result, nil
}

// ListNotifiedSharerIDs は閲覧者が通知を有効にしている共有者のID一覧を返す。
func (r *PostgresSharedAccessRepo) ListNotifiedSharerIDs(ctx context.Context, viewerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sharer_id FROM shared_accesses WHERE viewer_id = $1 AND notifications_enabled`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("通知対象の共有者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("共有者IDのスキャンに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知対象の共有者の読み込みに失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ SharedAccessRepository = (*PostgresSharedAccessRepo)(nil)
