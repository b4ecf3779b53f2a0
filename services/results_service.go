package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

// PublishResultsInput — курируемые поля итогов. Имортальный топ не входит:
// он вычисляется из total_score автоматически.
type PublishResultsInput struct {
	Top4IDs      []int `json:"top4_ids"`
	PaladinID    *int  `json:"paladin_id"`
	AmbassadorID *int  `json:"ambassador_id"`
}

// ResultsService управляет итогами события: автоматический топ имортальных,
// курируемые награды и флаги публикации.
type ResultsService interface {
	// CalculateImortals пересобирает имортальный топ: до трех имортальных
	// игроков с наибольшим итогом.
	CalculateImortals(ctx context.Context, userID, eventID int) ([]*models.Player, error)

	// Publish сохраняет курируемые поля и публикует финальные итоги.
	// Все указанные игроки обязаны принадлежать событию.
	Publish(ctx context.Context, userID, eventID int, input PublishResultsInput) (*models.Results, error)

	// PublishImortals пересчитывает имортальный топ и публикует его.
	PublishImortals(ctx context.Context, userID, eventID int) (*models.Results, error)

	// Revoke снимает обе публикации и очищает курируемые поля.
	Revoke(ctx context.Context, userID, eventID int) error

	// Get возвращает итоги с заполненными только опубликованными секциями.
	// Пока не опубликовано ничего, итоги недоступны.
	Get(ctx context.Context, userID, eventID int) (*models.Results, error)
}

type resultsService struct {
	db          *sql.DB
	resultsRepo repositories.ResultsRepository
	playerRepo  repositories.PlayerRepository
	eventRepo   repositories.EventRepository
	permissions PermissionService
	logger      *slog.Logger
}

func NewResultsService(
	db *sql.DB,
	resultsRepo repositories.ResultsRepository,
	playerRepo repositories.PlayerRepository,
	eventRepo repositories.EventRepository,
	permissions PermissionService,
	logger *slog.Logger,
) ResultsService {
	return &resultsService{
		db:          db,
		resultsRepo: resultsRepo,
		playerRepo:  playerRepo,
		eventRepo:   eventRepo,
		permissions: permissions,
		logger:      logger,
	}
}

func (s *resultsService) CalculateImortals(ctx context.Context, userID, eventID int) ([]*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}
	results, err := s.getResults(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.recalculateImortals(ctx, results)
}

func (s *resultsService) recalculateImortals(ctx context.Context, results *models.Results) ([]*models.Player, error) {
	imortal := true
	players, err := s.playerRepo.ListByEvent(ctx, results.EventID, repositories.ListPlayersFilter{
		IsImortal: &imortal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list imortal players: %w", err)
	}
	if len(players) > models.MaxImortals {
		players = players[:models.MaxImortals]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.resultsRepo.ClearImortals(ctx, tx, results.ID); err != nil {
		return nil, fmt.Errorf("failed to clear imortal top: %w", err)
	}
	for _, player := range players {
		if err := s.resultsRepo.AddImortal(ctx, tx, results.ID, player.ID); err != nil {
			return nil, fmt.Errorf("failed to add player %d to imortal top: %w", player.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit imortal top: %w", err)
	}
	return players, nil
}

func (s *resultsService) Publish(ctx context.Context, userID, eventID int, input PublishResultsInput) (*models.Results, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}
	if len(input.Top4IDs) == 0 && input.PaladinID == nil && input.AmbassadorID == nil {
		return nil, ErrResultsNoFields
	}
	if len(input.Top4IDs) > models.MaxTop4 {
		return nil, fmt.Errorf("%w: top4 holds at most %d players", ErrValidationFailed, models.MaxTop4)
	}

	results, err := s.getResults(ctx, eventID)
	if err != nil {
		return nil, err
	}

	refs := make([]int, 0, len(input.Top4IDs)+2)
	refs = append(refs, input.Top4IDs...)
	if input.PaladinID != nil {
		refs = append(refs, *input.PaladinID)
	}
	if input.AmbassadorID != nil {
		refs = append(refs, *input.AmbassadorID)
	}
	for _, playerID := range refs {
		player, getErr := s.playerRepo.GetByID(ctx, playerID)
		if getErr != nil {
			if errors.Is(getErr, repositories.ErrPlayerNotFound) {
				return nil, ErrPlayerNotFound
			}
			return nil, fmt.Errorf("failed to get player %d: %w", playerID, getErr)
		}
		if player.EventID != eventID {
			return nil, ErrResultsPlayerWrongEvent
		}
	}

	if len(input.Top4IDs) > 0 {
		if err := s.resultsRepo.ClearTop4(ctx, results.ID); err != nil {
			return nil, fmt.Errorf("failed to clear top4: %w", err)
		}
		for _, playerID := range input.Top4IDs {
			if err := s.resultsRepo.AddTop4(ctx, results.ID, playerID); err != nil {
				return nil, fmt.Errorf("failed to add player %d to top4: %w", playerID, err)
			}
		}
	}
	if input.PaladinID != nil {
		results.PaladinID = input.PaladinID
	}
	if input.AmbassadorID != nil {
		results.AmbassadorID = input.AmbassadorID
	}
	if err := s.resultsRepo.UpdateAwards(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to update awards: %w", err)
	}

	if err := s.setPublishFlags(ctx, eventID, func(event *models.Event) {
		event.IsFinalResultsPublished = true
	}); err != nil {
		return nil, err
	}

	s.logger.Info("final results published",
		slog.Int("event_id", eventID),
		slog.Int("user_id", userID))
	return s.loadPublished(ctx, eventID, results)
}

func (s *resultsService) PublishImortals(ctx context.Context, userID, eventID int) (*models.Results, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}
	results, err := s.getResults(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.recalculateImortals(ctx, results); err != nil {
		return nil, err
	}
	if err := s.setPublishFlags(ctx, eventID, func(event *models.Event) {
		event.IsImortalResultsPublished = true
	}); err != nil {
		return nil, err
	}

	s.logger.Info("imortal results published",
		slog.Int("event_id", eventID),
		slog.Int("user_id", userID))
	return s.loadPublished(ctx, eventID, results)
}

func (s *resultsService) Revoke(ctx context.Context, userID, eventID int) error {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return err
	}
	results, err := s.getResults(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.resultsRepo.ClearImortals(ctx, nil, results.ID); err != nil {
		return fmt.Errorf("failed to clear imortal top: %w", err)
	}
	if err := s.resultsRepo.ClearTop4(ctx, results.ID); err != nil {
		return fmt.Errorf("failed to clear top4: %w", err)
	}
	results.PaladinID = nil
	results.AmbassadorID = nil
	if err := s.resultsRepo.UpdateAwards(ctx, results); err != nil {
		return fmt.Errorf("failed to clear awards: %w", err)
	}

	if err := s.setPublishFlags(ctx, eventID, func(event *models.Event) {
		event.IsFinalResultsPublished = false
		event.IsImortalResultsPublished = false
	}); err != nil {
		return err
	}

	s.logger.Info("results revoked",
		slog.Int("event_id", eventID),
		slog.Int("user_id", userID))
	return nil
}

func (s *resultsService) Get(ctx context.Context, userID, eventID int) (*models.Results, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewEvent, eventID); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	if !event.IsFinalResultsPublished && !event.IsImortalResultsPublished {
		return nil, ErrResultsNotPublished
	}

	results, err := s.getResults(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.IsImortalResultsPublished {
		imortals, listErr := s.resultsRepo.ListImortals(ctx, results.ID)
		if listErr != nil {
			return nil, fmt.Errorf("failed to list imortal top: %w", listErr)
		}
		for _, p := range imortals {
			results.Imortals = append(results.Imortals, *p)
		}
	}
	if event.IsFinalResultsPublished {
		if err := s.attachFinal(ctx, results); err != nil {
			return nil, err
		}
	} else {
		// Не публиковавшиеся секции скрываются даже если поля заполнены.
		results.PaladinID = nil
		results.AmbassadorID = nil
	}
	return results, nil
}

func (s *resultsService) getResults(ctx context.Context, eventID int) (*models.Results, error) {
	results, err := s.resultsRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultsNotFound) {
			return nil, ErrResultsNotFound
		}
		return nil, fmt.Errorf("failed to get results of event %d: %w", eventID, err)
	}
	return results, nil
}

func (s *resultsService) setPublishFlags(ctx context.Context, eventID int, apply func(*models.Event)) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	apply(event)
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return fmt.Errorf("failed to update publish flags: %w", err)
	}
	return nil
}

func (s *resultsService) loadPublished(ctx context.Context, eventID int, results *models.Results) (*models.Results, error) {
	imortals, err := s.resultsRepo.ListImortals(ctx, results.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list imortal top: %w", err)
	}
	results.Imortals = results.Imortals[:0]
	for _, p := range imortals {
		results.Imortals = append(results.Imortals, *p)
	}
	if err := s.attachFinal(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *resultsService) attachFinal(ctx context.Context, results *models.Results) error {
	top4, err := s.resultsRepo.ListTop4(ctx, results.ID)
	if err != nil {
		return fmt.Errorf("failed to list top4: %w", err)
	}
	results.Top4 = results.Top4[:0]
	for _, p := range top4 {
		results.Top4 = append(results.Top4, *p)
	}

	if results.PaladinID != nil {
		paladin, getErr := s.playerRepo.GetByID(ctx, *results.PaladinID)
		if getErr == nil {
			results.Paladin = paladin
		} else if !errors.Is(getErr, repositories.ErrPlayerNotFound) {
			return fmt.Errorf("failed to get paladin: %w", getErr)
		}
	}
	if results.AmbassadorID != nil {
		ambassador, getErr := s.playerRepo.GetByID(ctx, *results.AmbassadorID)
		if getErr == nil {
			results.Ambassador = ambassador
		} else if !errors.Is(getErr, repositories.ErrPlayerNotFound) {
			return fmt.Errorf("failed to get ambassador: %w", getErr)
		}
	}
	return nil
}
