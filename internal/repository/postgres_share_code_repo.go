package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/database"
	"github.com/hitoshi/bptogether/internal/model"
)

const shareCodeUniqueConstraint = "share_codes_code_key"

// PostgresShareCodeRepo はPostgreSQLを使用した共有コードリポジトリ。
type PostgresShareCodeRepo struct {
	db *sql.DB
}

// NewPostgresShareCodeRepo はPostgresShareCodeRepoを生成する。
func NewPostgresShareCodeRepo(db *sql.DB) *PostgresShareCodeRepo {
	return &PostgresShareCodeRepo{db: db}
}

// Create は共有コードを作成する。
// UNIQUE(code)制約に違反した場合はErrDuplicateShareCodeを返す。
func (r *PostgresShareCodeRepo) Create(ctx context.Context, c *model.ShareCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO share_codes (id, code, user_id, role, expires_at, is_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, $6)`,
		c.ID, c.Code, c.UserID, c.Role, c.ExpiresAt, c.CreatedAt,
	)
	if database.IsUniqueViolation(err, shareCodeUniqueConstraint) {
		return ErrDuplicateShareCode
	}
	if err != nil {
		return fmt.Errorf("共有コードの作成に失敗しました: %w", err)
	}
	return nil
}

// Redeem は共有コードをSELECT ... FOR UPDATEでロックしてからcheckで検証し、
// 共有関係のUPSERTとコードの使用済み化を同一トランザクションで行う。
// 同じコードを同時に引き換えた場合、後続のトランザクションは使用済みのコードを観測する。
func (r *PostgresShareCodeRepo) Redeem(ctx context.Context, code, viewerID string, check RedeemCheck) (*model.SharedAccess, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	sc := &model.ShareCode{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, code, user_id, role, expires_at, is_used, created_at
		 FROM share_codes WHERE code = $1 FOR UPDATE`,
		code,
	).Scan(&sc.ID, &sc.Code, &sc.UserID, &sc.Role, &sc.ExpiresAt, &sc.IsUsed, &sc.CreatedAt)
	if err == sql.ErrNoRows {
		sc = nil
	} else if err != nil {
		return nil, fmt.Errorf("共有コードの取得に失敗しました: %w", err)
	}

	if err := check(sc); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, fmt.Errorf("共有コードが存在しません: %s", code)
	}

	now := time.Now()
	access, err := scanSharedAccess(tx.QueryRowContext(ctx,
		`INSERT INTO shared_accesses (id, sharer_id, viewer_id, role, notifications_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, $5, $5)
		 ON CONFLICT (sharer_id, viewer_id) DO UPDATE SET
		   role = EXCLUDED.role,
		   notifications_enabled = true,
		   updated_at = EXCLUDED.updated_at
		 RETURNING `+sharedAccessColumns,
		uuid.NewString(), sc.UserID, viewerID, sc.Role, now,
	))
	if err != nil {
		return nil, fmt.Errorf("共有関係の保存に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE share_codes SET is_used = true WHERE id = $1`, sc.ID); err != nil {
		return nil, fmt.Errorf("共有コードの使用済み化に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return access, nil
}

// DeleteExpired はexpires_atがnowより前の共有コードを削除し、削除件数を返す。
func (r *PostgresShareCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM share_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("期限切れ共有コードの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ShareCodeRepository = (*PostgresShareCodeRepo)(nil)
