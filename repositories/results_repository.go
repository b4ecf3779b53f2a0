package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrResultsNotFound      = errors.New("results not found")
	ErrResultsEventConflict = errors.New("results already exist for this event")
	ErrResultsPlayerInvalid = errors.New("results player reference conflict or invalid")
)

// ResultsRepository определяет интерфейс для работы с итогами события.
type ResultsRepository interface {
	Create(ctx context.Context, exec SQLExecutor, results *models.Results) error
	GetByEventID(ctx context.Context, eventID int) (*models.Results, error)

	// UpdateAwards выставляет паладина и посла (nil очищает поле).
	UpdateAwards(ctx context.Context, results *models.Results) error

	AddImortal(ctx context.Context, exec SQLExecutor, resultsID, playerID int) error
	ClearImortals(ctx context.Context, exec SQLExecutor, resultsID int) error
	ListImortals(ctx context.Context, resultsID int) ([]*models.Player, error)

	AddTop4(ctx context.Context, resultsID, playerID int) error
	ClearTop4(ctx context.Context, resultsID int) error
	ListTop4(ctx context.Context, resultsID int) ([]*models.Player, error)
}

type postgresResultsRepository struct {
	db *sql.DB
}

func NewPostgresResultsRepository(db *sql.DB) ResultsRepository {
	return &postgresResultsRepository{db: db}
}

func (r *postgresResultsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresResultsRepository) Create(ctx context.Context, exec SQLExecutor, results *models.Results) error {
	executor := r.getExecutor(exec)
	err := executor.QueryRowContext(ctx,
		`INSERT INTO results (event_id) VALUES ($1) RETURNING id`,
		results.EventID).Scan(&results.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrResultsEventConflict
		}
		return err
	}
	return nil
}

func (r *postgresResultsRepository) GetByEventID(ctx context.Context, eventID int) (*models.Results, error) {
	results := &models.Results{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, paladin_id, ambassador_id FROM results WHERE event_id = $1`,
		eventID).Scan(&results.ID, &results.EventID, &results.PaladinID, &results.AmbassadorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultsNotFound
		}
		return nil, err
	}
	return results, nil
}

func (r *postgresResultsRepository) UpdateAwards(ctx context.Context, results *models.Results) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE results SET paladin_id = $1, ambassador_id = $2 WHERE id = $3`,
		results.PaladinID, results.AmbassadorID, results.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrResultsPlayerInvalid
		}
		return err
	}
	return checkAffectedRows(result, ErrResultsNotFound)
}

func (r *postgresResultsRepository) AddImortal(ctx context.Context, exec SQLExecutor, resultsID, playerID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `
		INSERT INTO results_imortals (results_id, player_id)
		VALUES ($1, $2)
		ON CONFLICT (results_id, player_id) DO NOTHING`,
		resultsID, playerID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrResultsPlayerInvalid
		}
	}
	return err
}

func (r *postgresResultsRepository) ClearImortals(ctx context.Context, exec SQLExecutor, resultsID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM results_imortals WHERE results_id = $1`, resultsID)
	return err
}

func (r *postgresResultsRepository) ListImortals(ctx context.Context, resultsID int) ([]*models.Player, error) {
	return r.listPlayers(ctx, `
		SELECT p.id, p.full_name, p.social_name, p.total_score, p.registration_email,
		       p.is_imortal, p.is_present, p.user_id, p.event_id, p.created_at
		FROM players p
		JOIN results_imortals ri ON ri.player_id = p.id
		WHERE ri.results_id = $1
		ORDER BY p.total_score DESC`, resultsID)
}

func (r *postgresResultsRepository) AddTop4(ctx context.Context, resultsID, playerID int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results_top4 (results_id, player_id)
		VALUES ($1, $2)
		ON CONFLICT (results_id, player_id) DO NOTHING`,
		resultsID, playerID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrResultsPlayerInvalid
		}
	}
	return err
}

func (r *postgresResultsRepository) ClearTop4(ctx context.Context, resultsID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM results_top4 WHERE results_id = $1`, resultsID)
	return err
}

func (r *postgresResultsRepository) ListTop4(ctx context.Context, resultsID int) ([]*models.Player, error) {
	return r.listPlayers(ctx, `
		SELECT p.id, p.full_name, p.social_name, p.total_score, p.registration_email,
		       p.is_imortal, p.is_present, p.user_id, p.event_id, p.created_at
		FROM players p
		JOIN results_top4 rt ON rt.player_id = p.id
		WHERE rt.results_id = $1
		ORDER BY p.total_score DESC`, resultsID)
}

func (r *postgresResultsRepository) listPlayers(ctx context.Context, query string, resultsID int) ([]*models.Player, error) {
	rows, err := r.db.QueryContext(ctx, query, resultsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p, scanErr := scanPlayer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}
