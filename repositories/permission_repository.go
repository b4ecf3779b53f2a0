package repositories

import (
	"context"
	"database/sql"

	"github.com/mepa-comp/scoring-system/models"
)

// PermissionRepository хранит пообъектные выдачи прав: строка
// (user_id, event_id, capability) означает, что пользователь обладает
// данным правом в рамках данного события.
type PermissionRepository interface {
	// Grant выдает право. Идемпотентно: повторная выдача не является ошибкой.
	Grant(ctx context.Context, exec SQLExecutor, userID, eventID int, capability models.Capability) error

	// Has проверяет членство (user, event, capability) в таблице выдач.
	Has(ctx context.Context, userID, eventID int, capability models.Capability) (bool, error)

	// RevokeAllForEvent снимает все выдачи события (на случай, если каскад
	// БД не настроен для таблицы выдач).
	RevokeAllForEvent(ctx context.Context, eventID int) error

	// ListEventIDsForUser возвращает ID событий, где у пользователя есть
	// хотя бы одно право.
	ListEventIDsForUser(ctx context.Context, userID int) ([]int, error)

	// EnsureRole регистрирует имя роли. Идемпотентно.
	EnsureRole(ctx context.Context, name models.RoleName) error
}

type postgresPermissionRepository struct {
	db *sql.DB
}

func NewPostgresPermissionRepository(db *sql.DB) PermissionRepository {
	return &postgresPermissionRepository{db: db}
}

func (r *postgresPermissionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPermissionRepository) Grant(ctx context.Context, exec SQLExecutor, userID, eventID int, capability models.Capability) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `
		INSERT INTO event_permissions (user_id, event_id, capability)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, event_id, capability) DO NOTHING`,
		userID, eventID, capability)
	return err
}

func (r *postgresPermissionRepository) Has(ctx context.Context, userID, eventID int, capability models.Capability) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM event_permissions
			WHERE user_id = $1 AND event_id = $2 AND capability = $3
		)`,
		userID, eventID, capability).Scan(&exists)
	return exists, err
}

func (r *postgresPermissionRepository) RevokeAllForEvent(ctx context.Context, eventID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM event_permissions WHERE event_id = $1`, eventID)
	return err
}

func (r *postgresPermissionRepository) ListEventIDsForUser(ctx context.Context, userID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT event_id FROM event_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *postgresPermissionRepository) EnsureRole(ctx context.Context, name models.RoleName) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING`,
		name)
	return err
}
