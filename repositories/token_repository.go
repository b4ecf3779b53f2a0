package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mepa-comp/scoring-system/models"
)

var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenCodeConflict = errors.New("token code conflict")
)

// TokenRepository определяет интерфейс для работы с одноразовыми токенами.
type TokenRepository interface {
	// Create создает новый токен. Заполняет ID и CreatedAt переданного объекта.
	Create(ctx context.Context, token *models.Token) error

	// GetByCode ищет токен по его уникальному коду.
	GetByCode(ctx context.Context, code string) (*models.Token, error)

	// CodeExists сообщает, существует ли токен с данным кодом.
	CodeExists(ctx context.Context, code string) (bool, error)

	// MarkUsed помечает токен использованным. Переход одностороний:
	// used=false -> used=true. Возвращает ErrTokenNotFound, если токен
	// не существует или уже использован.
	MarkUsed(ctx context.Context, exec SQLExecutor, id int) error

	// Delete удаляет токен по его ID.
	Delete(ctx context.Context, id int) error
}

type postgresTokenRepository struct {
	db *sql.DB
}

func NewPostgresTokenRepository(db *sql.DB) TokenRepository {
	return &postgresTokenRepository{db: db}
}

func (r *postgresTokenRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTokenRepository) Create(ctx context.Context, token *models.Token) error {
	query := `
		INSERT INTO tokens (code, used)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, token.Code, token.Used).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "tokens_code_key" {
				return ErrTokenCodeConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresTokenRepository) GetByCode(ctx context.Context, code string) (*models.Token, error) {
	query := `
		SELECT id, code, used, created_at
		FROM tokens
		WHERE code = $1`

	token := &models.Token{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&token.ID,
		&token.Code,
		&token.Used,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *postgresTokenRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tokens WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *postgresTokenRepository) MarkUsed(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	// used = false в WHERE защищает от повторного потребления в гонке.
	query := `UPDATE tokens SET used = TRUE WHERE id = $1 AND used = FALSE`

	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTokenNotFound)
}

func (r *postgresTokenRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTokenNotFound)
}
