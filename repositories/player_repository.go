package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerEmailConflict = errors.New("player already registered for this event")
	ErrPlayerUserConflict  = errors.New("user is already a player of this event")
	ErrPlayerEventInvalid  = errors.New("player event conflict or invalid")
)

// ListPlayersFilter ограничивает выборку игроков события.
type ListPlayersFilter struct {
	IsImortal *bool
	MinScore  *int
}

// PlayerRepository определяет интерфейс для работы с игроками.
// Поле total_score изменяется только методами UpdateTotalScore и
// DecrementTotalScore — это контракт движка агрегации очков.
type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	GetByEventAndEmail(ctx context.Context, eventID int, email string) (*models.Player, error)
	GetByEventAndUser(ctx context.Context, eventID, userID int) (*models.Player, error)
	ListByEvent(ctx context.Context, eventID int, filter ListPlayersFilter) ([]*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	Delete(ctx context.Context, id, eventID int) error

	// GetOrCreate возвращает существующую запись по (email, event) или
	// создает новую. Вторым значением сообщает, была ли запись создана.
	GetOrCreate(ctx context.Context, player *models.Player) (bool, error)

	// UpdateTotalScore выставляет полный пересчитанный итог игрока.
	UpdateTotalScore(ctx context.Context, exec SQLExecutor, playerID, total int) error

	// DecrementTotalScore уменьшает итог игрока на delta с нижней границей 0.
	DecrementTotalScore(ctx context.Context, exec SQLExecutor, playerID, delta int) error

	// MarkImortal выставляет игроку флаг is_imortal. Идемпотентно.
	MarkImortal(ctx context.Context, exec SQLExecutor, playerID int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerColumns = `id, full_name, social_name, total_score, registration_email,
	is_imortal, is_present, user_id, event_id, created_at`

func scanPlayer(rowScanner interface{ Scan(...interface{}) error }) (*models.Player, error) {
	var p models.Player
	err := rowScanner.Scan(
		&p.ID, &p.FullName, &p.SocialName, &p.TotalScore, &p.RegistrationEmail,
		&p.IsImortal, &p.IsPresent, &p.UserID, &p.EventID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func mapPlayerError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "players_registration_email_event_id_key":
				return ErrPlayerEmailConflict
			case "players_user_id_event_id_key":
				return ErrPlayerUserConflict
			}
		case "23503": // foreign_key_violation
			return ErrPlayerEventInvalid
		}
	}
	return err
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players
			(full_name, social_name, registration_email, is_imortal, is_present, user_id, event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, total_score, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.FullName,
		player.SocialName,
		player.RegistrationEmail,
		player.IsImortal,
		player.IsPresent,
		player.UserID,
		player.EventID,
	).Scan(&player.ID, &player.TotalScore, &player.CreatedAt)
	if err != nil {
		return mapPlayerError(err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *postgresPlayerRepository) GetByEventAndEmail(ctx context.Context, eventID int, email string) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE event_id = $1 AND registration_email = $2`,
		eventID, email)
	return scanPlayer(row)
}

func (r *postgresPlayerRepository) GetByEventAndUser(ctx context.Context, eventID, userID int) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	return scanPlayer(row)
}

func (r *postgresPlayerRepository) ListByEvent(ctx context.Context, eventID int, filter ListPlayersFilter) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE event_id = $1`
	args := []interface{}{eventID}

	if filter.IsImortal != nil {
		args = append(args, *filter.IsImortal)
		query += fmt.Sprintf(" AND is_imortal = $%d", len(args))
	}
	if filter.MinScore != nil {
		args = append(args, *filter.MinScore)
		query += fmt.Sprintf(" AND total_score > $%d", len(args))
	}
	query += " ORDER BY total_score DESC, full_name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *postgresPlayerRepository) Update(ctx context.Context, player *models.Player) error {
	// total_score намеренно не входит в UPDATE: он производный.
	query := `
		UPDATE players SET
			full_name = $1, social_name = $2, registration_email = $3,
			is_imortal = $4, is_present = $5, user_id = $6
		WHERE id = $7 AND event_id = $8`

	result, err := r.db.ExecContext(ctx, query,
		player.FullName, player.SocialName, player.RegistrationEmail,
		player.IsImortal, player.IsPresent, player.UserID,
		player.ID, player.EventID,
	)
	if err != nil {
		return mapPlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id, eventID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM players WHERE id = $1 AND event_id = $2`, id, eventID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) GetOrCreate(ctx context.Context, player *models.Player) (bool, error) {
	existing, err := r.GetByEventAndEmail(ctx, player.EventID, player.RegistrationEmail)
	if err == nil {
		*player = *existing
		return false, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return false, fmt.Errorf("failed to look up player by email: %w", err)
	}

	if createErr := r.Create(ctx, player); createErr != nil {
		if errors.Is(createErr, ErrPlayerEmailConflict) {
			existing, getErr := r.GetByEventAndEmail(ctx, player.EventID, player.RegistrationEmail)
			if getErr != nil {
				return false, getErr
			}
			*player = *existing
			return false, nil
		}
		return false, createErr
	}
	return true, nil
}

func (r *postgresPlayerRepository) UpdateTotalScore(ctx context.Context, exec SQLExecutor, playerID, total int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE players SET total_score = $1 WHERE id = $2`, total, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) DecrementTotalScore(ctx context.Context, exec SQLExecutor, playerID, delta int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE players SET total_score = GREATEST(total_score - $1, 0) WHERE id = $2`,
		delta, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) MarkImortal(ctx context.Context, exec SQLExecutor, playerID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE players SET is_imortal = TRUE WHERE id = $1`, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
