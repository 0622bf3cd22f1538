package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/bptogether/internal/model"
)

const readingColumns = `id, user_id, systolic, diastolic, pulse, recorded_at, created_at, updated_at`

// PostgresReadingRepo はPostgreSQLを使用した測定記録リポジトリ。
type PostgresReadingRepo struct {
	db *sql.DB
}

// NewPostgresReadingRepo はPostgresReadingRepoを生成する。
func NewPostgresReadingRepo(db *sql.DB) *PostgresReadingRepo {
	return &PostgresReadingRepo{db: db}
}

func scanReading(row interface{ Scan(...any) error }) (*model.Reading, error) {
	rd := &model.Reading{}
	err := row.Scan(&rd.ID, &rd.UserID, &rd.Systolic, &rd.Diastolic, &rd.Pulse, &rd.RecordedAt, &rd.CreatedAt, &rd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// FindByID は指定IDの測定記録を取得する。見つからない場合はnilを返す。
func (r *PostgresReadingRepo) FindByID(ctx context.Context, id string) (*model.Reading, error) {
	rd, err := scanReading(r.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("測定記録の取得に失敗しました: %w", err)
	}
	return rd, nil
}

// Create は測定記録を作成する。
func (r *PostgresReadingRepo) Create(ctx context.Context, rd *model.Reading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO readings (`+readingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rd.ID, rd.UserID, rd.Systolic, rd.Diastolic, rd.Pulse, rd.RecordedAt, rd.CreatedAt, rd.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("測定記録の作成に失敗しました: %w", err)
	}
	return nil
}

// BulkCreate は複数の測定記録を1回のINSERTで作成する。
// 1件でも失敗した場合は全件ロールバックする。
func (r *PostgresReadingRepo) BulkCreate(ctx context.Context, readings []*model.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	const cols = 8
	var sb strings.Builder
	sb.WriteString(`INSERT INTO readings (` + readingColumns + `) VALUES `)
	args := make([]interface{}, 0, len(readings)*cols)
	for i, rd := range readings {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+j+1)
		}
		sb.WriteString(")")
		args = append(args, rd.ID, rd.UserID, rd.Systolic, rd.Diastolic, rd.Pulse, rd.RecordedAt, rd.CreatedAt, rd.UpdatedAt)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("測定記録の一括作成に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("作成件数の取得に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return int(n), nil
}

// Update は測定値と測定日時を上書き更新する。
func (r *PostgresReadingRepo) Update(ctx context.Context, rd *model.Reading) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE readings SET systolic = $2, diastolic = $3, pulse = $4, recorded_at = $5, updated_at = $6
		 WHERE id = $1`,
		rd.ID, rd.Systolic, rd.Diastolic, rd.Pulse, rd.RecordedAt, rd.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("測定記録の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの測定記録を削除する。
func (r *PostgresReadingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("測定記録の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUser はユーザーの測定記録をrecorded_at降順で返す。
// Start/Endが両方あれば期間（両端を含む）で絞り込み、Limitが正ならページングする。
// Pageは1始まりで、0以下は1として扱う。
func (r *PostgresReadingRepo) ListByUser(ctx context.Context, userID string, q model.ReadingQuery) ([]*model.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE user_id = $1`
	args := []interface{}{userID}

	switch {
	case q.Start != nil && q.End != nil:
		query += ` AND recorded_at >= $2 AND recorded_at <= $3 ORDER BY recorded_at DESC`
		args = append(args, *q.Start, *q.End)
	case q.Limit > 0:
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += ` ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`
		args = append(args, q.Limit, (page-1)*q.Limit)
	default:
		query += ` ORDER BY recorded_at DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("測定記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	readings := []*model.Reading{}
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("測定記録のスキャンに失敗しました: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("測定記録一覧の読み込みに失敗しました: %w", err)
	}
	return readings, nil
}

// CountSince はsince以降に記録された測定記録の件数を返す。
func (r *PostgresReadingRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readings WHERE user_id = $1 AND recorded_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("測定記録数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ReadingRepository = (*PostgresReadingRepo)(nil)
