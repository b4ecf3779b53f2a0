package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventTokenConflict    = errors.New("event already exists for this token")
	ErrEventJoinCodeConflict = errors.New("event join code conflict")
)

// EventRepository определяет интерфейс для работы с событиями.
type EventRepository interface {
	// Create создает событие. Заполняет ID и CreatedAt переданного объекта.
	Create(ctx context.Context, exec SQLExecutor, event *models.Event) error

	GetByID(ctx context.Context, id int) (*models.Event, error)
	GetByTokenID(ctx context.Context, tokenID int) (*models.Event, error)
	GetByJoinCode(ctx context.Context, joinCode string) (*models.Event, error)

	// JoinCodeExists сообщает, занят ли код присоединения другим событием.
	JoinCodeExists(ctx context.Context, joinCode string) (bool, error)

	// ListByIDs возвращает события с указанными ID, отсортированные по имени.
	ListByIDs(ctx context.Context, ids []int) ([]*models.Event, error)

	Update(ctx context.Context, event *models.Event) error
	UpdateJoinCode(ctx context.Context, id int, joinCode string) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error

	// Delete удаляет событие. Каскад на уровне БД удаляет staff, players,
	// sumulas, player_scores и results.
	Delete(ctx context.Context, id int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const eventColumns = `id, token_id, name, active, admin_email, join_code,
	is_final_results_published, is_imortal_results_published, sumulas_generated,
	logo_key, created_at`

func scanEvent(rowScanner interface{ Scan(...interface{}) error }) (*models.Event, error) {
	var e models.Event
	err := rowScanner.Scan(
		&e.ID, &e.TokenID, &e.Name, &e.Active, &e.AdminEmail, &e.JoinCode,
		&e.IsFinalResultsPublished, &e.IsImortalResultsPublished, &e.SumulasGenerated,
		&e.LogoKey, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *postgresEventRepository) Create(ctx context.Context, exec SQLExecutor, event *models.Event) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO events (token_id, name, active, admin_email, join_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		event.TokenID,
		event.Name,
		event.Active,
		event.AdminEmail,
		event.JoinCode,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "events_token_id_key":
				return ErrEventTokenConflict
			case "events_join_code_key":
				return ErrEventJoinCodeConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

func (r *postgresEventRepository) GetByTokenID(ctx context.Context, tokenID int) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE token_id = $1`, tokenID)
	return scanEvent(row)
}

func (r *postgresEventRepository) GetByJoinCode(ctx context.Context, joinCode string) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE join_code = $1`, joinCode)
	return scanEvent(row)
}

func (r *postgresEventRepository) JoinCodeExists(ctx context.Context, joinCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE join_code = $1)`, joinCode).Scan(&exists)
	return exists, err
}

func (r *postgresEventRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Event, error) {
	events := make([]*models.Event, 0, len(ids))
	if len(ids) == 0 {
		return events, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ANY($1) ORDER BY name`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresEventRepository) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events SET
			name = $1, active = $2, admin_email = $3,
			is_final_results_published = $4, is_imortal_results_published = $5,
			sumulas_generated = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		event.Name, event.Active, event.AdminEmail,
		event.IsFinalResultsPublished, event.IsImortalResultsPublished,
		event.SumulasGenerated,
		event.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdateJoinCode(ctx context.Context, id int, joinCode string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET join_code = $1 WHERE id = $2`, joinCode, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEventJoinCodeConflict
		}
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
