package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bptogether/internal/model"
)

const userColumns = `id, firebase_uid, email, name, terms_accepted_at, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var termsAcceptedAt sql.NullTime
	if err := row.Scan(&user.ID, &user.FirebaseUID, &user.Email, &user.Name, &termsAcceptedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if termsAcceptedAt.Valid {
		t := termsAcceptedAt.Time
		user.TermsAcceptedAt = &t
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// UpsertByFirebaseUID はFirebase UIDでユーザーを作成または更新する。
// 既存ユーザーの場合は空でないメールアドレスと表示名のみ反映する。
func (r *PostgresUserRepo) UpsertByFirebaseUID(ctx context.Context, user *model.User) (*model.User, error) {
	saved, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, firebase_uid, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (firebase_uid) DO UPDATE SET
		   email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		   name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		   updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		user.ID, user.FirebaseUID, user.Email, user.Name, user.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}

// AcceptTerms は利用規約への同意日時を記録する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) AcceptTerms(ctx context.Context, id string, at time.Time) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET terms_accepted_at = $2, updated_at = $2 WHERE id = $1 RETURNING `+userColumns,
		id, at,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to accept terms: %w", err)
	}
	return user, nil
}

// cascadeDeletes はユーザー削除時に先行して実行するDELETE文（実行順）。
var cascadeDeletes = []struct {
	table string
	query string
}{
	{"readings", `DELETE FROM readings WHERE user_id = $1`},
	{"notification_settings", `DELETE FROM notification_settings WHERE user_id = $1`},
	{"device_tokens", `DELETE FROM device_tokens WHERE user_id = $1`},
	{"share_codes", `DELETE FROM share_codes WHERE user_id = $1`},
	{"shared_accesses", `DELETE FROM shared_accesses WHERE sharer_id = $1 OR viewer_id = $1`},
}

// DeleteCascade はユーザーと関連データを同一トランザクションで削除する。
// いずれかの削除に失敗した場合は全体をロールバックする。
func (r *PostgresUserRepo) DeleteCascade(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range cascadeDeletes {
		if _, err := tx.ExecContext(ctx, d.query, id); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", d.table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
