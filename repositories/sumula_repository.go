package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrSumulaNotFound       = errors.New("sumula not found")
	ErrSumulaNumberConflict = errors.New("imortal sumula number conflict")
	ErrSumulaEventInvalid   = errors.New("sumula event conflict or invalid")
	ErrRefereeNotFound      = errors.New("referee assignment not found")
)

// SumulaRepository определяет интерфейс для работы с сумулами обоих видов.
type SumulaRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sumula *models.Sumula) error
	GetByID(ctx context.Context, id int, kind models.SumulaKind) (*models.Sumula, error)

	// ListByEvent возвращает сумулы события данного вида; active=nil — все.
	ListByEvent(ctx context.Context, eventID int, kind models.SumulaKind, active *bool) ([]*models.Sumula, error)

	Update(ctx context.Context, exec SQLExecutor, sumula *models.Sumula) error
	Delete(ctx context.Context, id int, kind models.SumulaKind) error

	// LockMaxImortalNumber блокирует (FOR UPDATE) имортальные сумулы события
	// и возвращает максимальный выданный номер (0, если их нет). Должен
	// вызываться внутри транзакции — exec обязан быть *sql.Tx.
	LockMaxImortalNumber(ctx context.Context, exec SQLExecutor, eventID int) (int, error)

	// AddReferee привязывает арбитра к сумуле. Идемпотентно.
	AddReferee(ctx context.Context, exec SQLExecutor, sumulaID, staffID int) error
	ListReferees(ctx context.Context, sumulaID int) ([]*models.Staff, error)
	IsReferee(ctx context.Context, sumulaID, staffID int) (bool, error)
}

type postgresSumulaRepository struct {
	db *sql.DB
}

func NewPostgresSumulaRepository(db *sql.DB) SumulaRepository {
	return &postgresSumulaRepository{db: db}
}

func (r *postgresSumulaRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const sumulaColumns = `id, kind, name, active, description, number, event_id, rounds, created_at`

func scanSumula(rowScanner interface{ Scan(...interface{}) error }) (*models.Sumula, error) {
	var s models.Sumula
	err := rowScanner.Scan(
		&s.ID, &s.Kind, &s.Name, &s.Active, &s.Description,
		&s.Number, &s.EventID, &s.Rounds, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSumulaNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresSumulaRepository) Create(ctx context.Context, exec SQLExecutor, sumula *models.Sumula) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO sumulas (kind, name, active, description, number, event_id, rounds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		sumula.Kind,
		sumula.Name,
		sumula.Active,
		sumula.Description,
		sumula.Number,
		sumula.EventID,
		sumula.Rounds,
	).Scan(&sumula.ID, &sumula.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "sumulas_event_id_number_key" {
					return ErrSumulaNumberConflict
				}
			case "23503":
				return ErrSumulaEventInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresSumulaRepository) GetByID(ctx context.Context, id int, kind models.SumulaKind) (*models.Sumula, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sumulaColumns+` FROM sumulas WHERE id = $1 AND kind = $2`, id, kind)
	return scanSumula(row)
}

func (r *postgresSumulaRepository) ListByEvent(ctx context.Context, eventID int, kind models.SumulaKind, active *bool) ([]*models.Sumula, error) {
	query := `SELECT ` + sumulaColumns + ` FROM sumulas WHERE event_id = $1 AND kind = $2`
	args := []interface{}{eventID, kind}
	if active != nil {
		args = append(args, *active)
		query += ` AND active = $3`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sumulas := make([]*models.Sumula, 0)
	for rows.Next() {
		s, scanErr := scanSumula(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sumulas = append(sumulas, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sumulas, nil
}

func (r *postgresSumulaRepository) Update(ctx context.Context, exec SQLExecutor, sumula *models.Sumula) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE sumulas SET
			name = $1, active = $2, description = $3, rounds = $4
		WHERE id = $5 AND kind = $6`

	result, err := executor.ExecContext(ctx, query,
		sumula.Name, sumula.Active, sumula.Description, sumula.Rounds,
		sumula.ID, sumula.Kind,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSumulaNotFound)
}

func (r *postgresSumulaRepository) Delete(ctx context.Context, id int, kind models.SumulaKind) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sumulas WHERE id = $1 AND kind = $2`, id, kind)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSumulaNotFound)
}

func (r *postgresSumulaRepository) LockMaxImortalNumber(ctx context.Context, exec SQLExecutor, eventID int) (int, error) {
	executor := r.getExecutor(exec)
	// FOR UPDATE сериализует конкурентные создания имортальных сумул одного
	// события: обе транзакции не могут вычислить один и тот же номер.
	rows, err := executor.QueryContext(ctx, `
		SELECT number FROM sumulas
		WHERE event_id = $1 AND kind = $2 AND number IS NOT NULL
		FOR UPDATE`,
		eventID, models.SumulaImortal)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var n int
		if scanErr := rows.Scan(&n); scanErr != nil {
			return 0, scanErr
		}
		if n > max {
			max = n
		}
	}
	if err = rows.Err(); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *postgresSumulaRepository) AddReferee(ctx context.Context, exec SQLExecutor, sumulaID, staffID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `
		INSERT INTO sumula_referees (sumula_id, staff_id)
		VALUES ($1, $2)
		ON CONFLICT (sumula_id, staff_id) DO NOTHING`,
		sumulaID, staffID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrRefereeNotFound
		}
		return err
	}
	return nil
}

func (r *postgresSumulaRepository) ListReferees(ctx context.Context, sumulaID int) ([]*models.Staff, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.full_name, s.registration_email, s.is_manager, s.user_id, s.event_id, s.created_at
		FROM staff s
		JOIN sumula_referees sr ON sr.staff_id = s.id
		WHERE sr.sumula_id = $1
		ORDER BY s.full_name`,
		sumulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referees := make([]*models.Staff, 0)
	for rows.Next() {
		s, scanErr := scanStaff(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		referees = append(referees, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return referees, nil
}

func (r *postgresSumulaRepository) IsReferee(ctx context.Context, sumulaID, staffID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sumula_referees WHERE sumula_id = $1 AND staff_id = $2)`,
		sumulaID, staffID).Scan(&exists)
	return exists, err
}
