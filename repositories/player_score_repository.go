package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrPlayerScoreNotFound    = errors.New("player score not found")
	ErrPlayerScoreRefInvalid  = errors.New("player score reference conflict or invalid")
	ErrPlayerScoreLinkInvalid = errors.New("player score must reference exactly one sumula")
)

// PlayerScoreRepository определяет интерфейс для работы с записями очков.
type PlayerScoreRepository interface {
	Create(ctx context.Context, exec SQLExecutor, score *models.PlayerScore) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PlayerScore, error)
	ListBySumula(ctx context.Context, sumulaID int, kind models.SumulaKind) ([]*models.PlayerScore, error)
	ListByPlayer(ctx context.Context, playerID int) ([]*models.PlayerScore, error)

	UpdatePoints(ctx context.Context, exec SQLExecutor, id, points int) error
	UpdateRoundsNumber(ctx context.Context, exec SQLExecutor, id, roundsNumber int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error

	// SumPointsByPlayer возвращает сумму очков игрока по всем записям.
	SumPointsByPlayer(ctx context.Context, exec SQLExecutor, playerID int) (int, error)
}

type postgresPlayerScoreRepository struct {
	db *sql.DB
}

func NewPostgresPlayerScoreRepository(db *sql.DB) PlayerScoreRepository {
	return &postgresPlayerScoreRepository{db: db}
}

func (r *postgresPlayerScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const scoreColumns = `id, player_id, event_id, points, rounds_number,
	sumula_classificatoria_id, sumula_imortal_id`

func scanScore(rowScanner interface{ Scan(...interface{}) error }) (*models.PlayerScore, error) {
	var ps models.PlayerScore
	err := rowScanner.Scan(
		&ps.ID, &ps.PlayerID, &ps.EventID, &ps.Points, &ps.RoundsNumber,
		&ps.SumulaClassificatoriaID, &ps.SumulaImortalID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerScoreNotFound
		}
		return nil, err
	}
	return &ps, nil
}

func (r *postgresPlayerScoreRepository) Create(ctx context.Context, exec SQLExecutor, score *models.PlayerScore) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_scores
			(player_id, event_id, points, rounds_number, sumula_classificatoria_id, sumula_imortal_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		score.PlayerID,
		score.EventID,
		score.Points,
		score.RoundsNumber,
		score.SumulaClassificatoriaID,
		score.SumulaImortalID,
	).Scan(&score.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23503": // foreign_key_violation
				return ErrPlayerScoreRefInvalid
			case "23514": // check_violation: CHECK на эксклюзивность ссылки
				return ErrPlayerScoreLinkInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresPlayerScoreRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PlayerScore, error) {
	executor := r.getExecutor(exec)
	row := executor.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM player_scores WHERE id = $1`, id)
	return scanScore(row)
}

func (r *postgresPlayerScoreRepository) ListBySumula(ctx context.Context, sumulaID int, kind models.SumulaKind) ([]*models.PlayerScore, error) {
	column := "sumula_classificatoria_id"
	if kind == models.SumulaImortal {
		column = "sumula_imortal_id"
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM player_scores WHERE `+column+` = $1 ORDER BY id`,
		sumulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScores(rows)
}

func (r *postgresPlayerScoreRepository) ListByPlayer(ctx context.Context, playerID int) ([]*models.PlayerScore, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM player_scores WHERE player_id = $1 ORDER BY id`,
		playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScores(rows)
}

func collectScores(rows *sql.Rows) ([]*models.PlayerScore, error) {
	scores := make([]*models.PlayerScore, 0)
	for rows.Next() {
		ps, scanErr := scanScore(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		scores = append(scores, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *postgresPlayerScoreRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, id, points int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE player_scores SET points = $1 WHERE id = $2`, points, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerScoreNotFound)
}

func (r *postgresPlayerScoreRepository) UpdateRoundsNumber(ctx context.Context, exec SQLExecutor, id, roundsNumber int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE player_scores SET rounds_number = $1 WHERE id = $2`, roundsNumber, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerScoreNotFound)
}

func (r *postgresPlayerScoreRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM player_scores WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerScoreNotFound)
}

func (r *postgresPlayerScoreRepository) SumPointsByPlayer(ctx context.Context, exec SQLExecutor, playerID int) (int, error) {
	executor := r.getExecutor(exec)
	var total int
	err := executor.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM player_scores WHERE player_id = $1`,
		playerID).Scan(&total)
	return total, err
}
