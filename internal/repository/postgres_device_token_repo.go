package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bptogether/internal/model"
)

// PostgresDeviceTokenRepo はPostgreSQLを使用した通知トークンリポジトリ。
type PostgresDeviceTokenRepo struct {
	db *sql.DB
}

// NewPostgresDeviceTokenRepo はPostgresDeviceTokenRepoを生成する。
func NewPostgresDeviceTokenRepo(db *sql.DB) *PostgresDeviceTokenRepo {
	return &PostgresDeviceTokenRepo{db: db}
}

// Upsert はトークンを登録する。
// 同じトークンが別ユーザーで登録済みの場合は新しいユーザーに付け替える。
func (r *PostgresDeviceTokenRepo) Upsert(ctx context.Context, t *model.DeviceToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_tokens (id, user_id, token, platform, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (token) DO UPDATE SET
		   user_id = EXCLUDED.user_id,
		   platform = EXCLUDED.platform,
		   updated_at = EXCLUDED.updated_at`,
		t.ID, t.UserID, t.Token, t.Platform, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知トークンの登録に失敗しました: %w", err)
	}
	return nil
}

// DeleteByToken はトークンを削除し、削除件数を返す。
func (r *PostgresDeviceTokenRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1`, token)
	if err != nil {
		return 0, fmt.Errorf("通知トークンの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Exists はトークンが登録済みかどうかを返す。
func (r *PostgresDeviceTokenRepo) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM device_tokens WHERE token = $1)`,
		token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("通知トークンの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListTokensByUser はユーザーに紐付く全トークン値を返す。
func (r *PostgresDeviceTokenRepo) ListTokensByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token FROM device_tokens WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("通知トークン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("通知トークンのスキャンに失敗しました: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知トークン一覧の読み込みに失敗しました: %w", err)
	}
	return tokens, nil
}

// compile-time interface check
var _ DeviceTokenRepository = (*PostgresDeviceTokenRepo)(nil)
