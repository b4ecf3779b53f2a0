package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
	"golang.org/x/sync/errgroup"
)

// recomputeConcurrency ограничивает число параллельных пересчетов итогов
// при обходе всех игроков события.
const recomputeConcurrency = 8

type CreateScoreInput struct {
	PlayerID                int  `json:"player_id"`
	Points                  int  `json:"points"`
	RoundsNumber            int  `json:"rounds_number"`
	SumulaClassificatoriaID *int `json:"sumula_classificatoria_id"`
	SumulaImortalID         *int `json:"sumula_imortal_id"`
}

// ScoreService — движок агрегации очков. Инвариант: total_score игрока
// равен сумме его записей очков; каждая мутация записи сопровождается
// пересчетом итога в той же транзакции.
type ScoreService interface {
	CreateScore(ctx context.Context, userID, eventID int, input CreateScoreInput) (*models.PlayerScore, error)
	UpdatePoints(ctx context.Context, userID, eventID, scoreID, points int) (*models.PlayerScore, error)
	DeleteScore(ctx context.Context, userID, eventID, scoreID int) error

	ListByPlayer(ctx context.Context, userID, eventID, playerID int) ([]*models.PlayerScore, error)

	// RecomputeTotal пересчитывает итог игрока с нуля по всем записям.
	RecomputeTotal(ctx context.Context, playerID int) (int, error)

	// RecomputeAllForEvent пересчитывает итоги всех игроков события.
	RecomputeAllForEvent(ctx context.Context, userID, eventID int) error
}

type scoreService struct {
	db          *sql.DB
	scoreRepo   repositories.PlayerScoreRepository
	playerRepo  repositories.PlayerRepository
	sumulaRepo  repositories.SumulaRepository
	permissions PermissionService
	logger      *slog.Logger
}

func NewScoreService(
	db *sql.DB,
	scoreRepo repositories.PlayerScoreRepository,
	playerRepo repositories.PlayerRepository,
	sumulaRepo repositories.SumulaRepository,
	permissions PermissionService,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		db:          db,
		scoreRepo:   scoreRepo,
		playerRepo:  playerRepo,
		sumulaRepo:  sumulaRepo,
		permissions: permissions,
		logger:      logger,
	}
}

// validateScoreInput проверяет запись до вставки. Порядок: значения,
// принадлежность игрока событию, принадлежность сумулы событию,
// эксклюзивность ссылки.
func (s *scoreService) validateScoreInput(ctx context.Context, eventID int, input CreateScoreInput) error {
	if input.Points < 0 {
		return ErrNegativePoints
	}

	player, err := s.playerRepo.GetByID(ctx, input.PlayerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to get player %d: %w", input.PlayerID, err)
	}
	if player.EventID != eventID {
		return ErrScoreEventMismatch
	}

	// Каждая указанная ссылка должна вести на сумулу этого события,
	// даже если пара ссылок нарушает эксклюзивность.
	if input.SumulaClassificatoriaID != nil {
		if err := s.requireSumulaInEvent(ctx, *input.SumulaClassificatoriaID, models.SumulaClassificatoria, eventID); err != nil {
			return err
		}
	}
	if input.SumulaImortalID != nil {
		if err := s.requireSumulaInEvent(ctx, *input.SumulaImortalID, models.SumulaImortal, eventID); err != nil {
			return err
		}
	}

	if (input.SumulaClassificatoriaID != nil) == (input.SumulaImortalID != nil) {
		return ErrScoreLinkExclusivity
	}
	return nil
}

func (s *scoreService) requireSumulaInEvent(ctx context.Context, sumulaID int, kind models.SumulaKind, eventID int) error {
	sumula, err := s.sumulaRepo.GetByID(ctx, sumulaID, kind)
	if err != nil {
		if errors.Is(err, repositories.ErrSumulaNotFound) {
			return ErrSumulaNotFound
		}
		return fmt.Errorf("failed to get sumula %d: %w", sumulaID, err)
	}
	if sumula.EventID != eventID {
		return ErrScoreSumulaMismatch
	}
	return nil
}

func (s *scoreService) CreateScore(ctx context.Context, userID, eventID int, input CreateScoreInput) (*models.PlayerScore, error) {
	if err := s.permissions.Require(ctx, userID, models.CapAddPlayerScoreEvent, eventID); err != nil {
		return nil, err
	}
	if err := s.validateScoreInput(ctx, eventID, input); err != nil {
		return nil, err
	}

	score := &models.PlayerScore{
		PlayerID:                input.PlayerID,
		EventID:                 eventID,
		Points:                  input.Points,
		RoundsNumber:            input.RoundsNumber,
		SumulaClassificatoriaID: input.SumulaClassificatoriaID,
		SumulaImortalID:         input.SumulaImortalID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.scoreRepo.Create(ctx, tx, score); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPlayerScoreLinkInvalid):
			return nil, ErrScoreLinkExclusivity
		case errors.Is(err, repositories.ErrPlayerScoreRefInvalid):
			return nil, fmt.Errorf("%w: score references", ErrValidationFailed)
		}
		return nil, fmt.Errorf("failed to create score: %w", err)
	}
	if err := s.recomputeTotalTx(ctx, tx, score.PlayerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit score creation: %w", err)
	}
	return score, nil
}

func (s *scoreService) UpdatePoints(ctx context.Context, userID, eventID, scoreID, points int) (*models.PlayerScore, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangePlayerScoreEvent, eventID); err != nil {
		return nil, err
	}
	if points < 0 {
		return nil, ErrNegativePoints
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	score, err := s.getScoreInEvent(ctx, tx, scoreID, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.scoreRepo.UpdatePoints(ctx, tx, score.ID, points); err != nil {
		return nil, fmt.Errorf("failed to update score %d: %w", score.ID, err)
	}
	score.Points = points
	if err := s.recomputeTotalTx(ctx, tx, score.PlayerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit score update: %w", err)
	}
	return score, nil
}

func (s *scoreService) DeleteScore(ctx context.Context, userID, eventID, scoreID int) error {
	if err := s.permissions.Require(ctx, userID, models.CapDeletePlayerScoreEvent, eventID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	score, err := s.getScoreInEvent(ctx, tx, scoreID, eventID)
	if err != nil {
		return err
	}
	if err := s.scoreRepo.Delete(ctx, tx, score.ID); err != nil {
		return fmt.Errorf("failed to delete score %d: %w", score.ID, err)
	}
	// O(1)-декремент с нижней границей 0 вместо полного пересчета.
	if err := s.playerRepo.DecrementTotalScore(ctx, tx, score.PlayerID, score.Points); err != nil {
		return fmt.Errorf("failed to decrement total for player %d: %w", score.PlayerID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score deletion: %w", err)
	}
	return nil
}

func (s *scoreService) ListByPlayer(ctx context.Context, userID, eventID, playerID int) ([]*models.PlayerScore, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewPlayerScoreEvent, eventID); err != nil {
		return nil, err
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player %d: %w", playerID, err)
	}
	if player.EventID != eventID {
		return nil, ErrPlayerNotFound
	}
	return s.scoreRepo.ListByPlayer(ctx, playerID)
}

// getScoreInEvent загружает запись и проверяет ее принадлежность событию.
// Чужая запись неотличима от несуществующей.
func (s *scoreService) getScoreInEvent(ctx context.Context, exec repositories.SQLExecutor, scoreID, eventID int) (*models.PlayerScore, error) {
	score, err := s.scoreRepo.GetByID(ctx, exec, scoreID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerScoreNotFound) {
			return nil, ErrPlayerScoreNotFound
		}
		return nil, fmt.Errorf("failed to get score %d: %w", scoreID, err)
	}
	if score.EventID != eventID {
		return nil, ErrPlayerScoreNotFound
	}
	return score, nil
}

func (s *scoreService) recomputeTotalTx(ctx context.Context, exec repositories.SQLExecutor, playerID int) error {
	total, err := s.scoreRepo.SumPointsByPlayer(ctx, exec, playerID)
	if err != nil {
		return fmt.Errorf("failed to sum points for player %d: %w", playerID, err)
	}
	if err := s.playerRepo.UpdateTotalScore(ctx, exec, playerID, total); err != nil {
		return fmt.Errorf("failed to update total for player %d: %w", playerID, err)
	}
	return nil
}

func (s *scoreService) RecomputeTotal(ctx context.Context, playerID int) (int, error) {
	total, err := s.scoreRepo.SumPointsByPlayer(ctx, nil, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points for player %d: %w", playerID, err)
	}
	if err := s.playerRepo.UpdateTotalScore(ctx, nil, playerID, total); err != nil {
		return 0, fmt.Errorf("failed to update total for player %d: %w", playerID, err)
	}
	return total, nil
}

func (s *scoreService) RecomputeAllForEvent(ctx context.Context, userID, eventID int) error {
	if err := s.permissions.Require(ctx, userID, models.CapChangePlayerScoreEvent, eventID); err != nil {
		return err
	}

	players, err := s.playerRepo.ListByEvent(ctx, eventID, repositories.ListPlayersFilter{})
	if err != nil {
		return fmt.Errorf("failed to list players of event %d: %w", eventID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeConcurrency)
	for _, player := range players {
		playerID := player.ID
		g.Go(func() error {
			_, err := s.RecomputeTotal(gctx, playerID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to recompute totals for event %d: %w", eventID, err)
	}

	s.logger.Info("recomputed totals",
		slog.Int("event_id", eventID),
		slog.Int("players", len(players)))
	return nil
}
