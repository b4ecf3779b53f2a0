package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

type CreateSumulaInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rounds      json.RawMessage `json:"rounds"`
	RefereeIDs  []int           `json:"referee_ids"`
	PlayerIDs   []int           `json:"player_ids"`
}

type ScoreUpdateInput struct {
	ID           int `json:"id"`
	Points       int `json:"points"`
	RoundsNumber int `json:"rounds_number"`
}

type CloseSumulaInput struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Rounds           json.RawMessage    `json:"rounds"`
	Scores           []ScoreUpdateInput `json:"scores"`
	ImortalPlayerIDs []int              `json:"imortal_player_ids"`
}

// SumulaService управляет сумулами: создание с начальными записями очков,
// закрытие с пакетным обновлением очков, назначение арбитров.
type SumulaService interface {
	// Create создает сумулу вместе с нулевыми записями очков для каждого
	// игрока из PlayerIDs — все или ничего. Для имортальной сумулы номер
	// выдается последовательно в рамках события, имя по умолчанию
	// строится из номера.
	Create(ctx context.Context, userID, eventID int, kind models.SumulaKind, input CreateSumulaInput) (*models.Sumula, error)

	Get(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) (*models.Sumula, error)
	List(ctx context.Context, userID, eventID int, kind models.SumulaKind, active *bool) ([]*models.Sumula, error)

	// ListForPlayer возвращает активные сумулы обоих видов, в которых
	// участвует игрок вызывающего пользователя. Очки в выдачу не входят.
	ListForPlayer(ctx context.Context, userID, eventID int) ([]*models.Sumula, error)

	// Close деактивирует сумулу и применяет пакет обновлений очков.
	// Вызывающий обязан быть арбитром этой сумулы. Если хотя бы одна
	// запись пакета не принадлежит сумуле, отклоняется весь пакет.
	Close(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind, input CloseSumulaInput) (*models.Sumula, error)

	// AddSelfReferee назначает вызывающего (персонал события) арбитром
	// активной сумулы. Идемпотентно.
	AddSelfReferee(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) error

	Delete(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) error
}

type sumulaService struct {
	db          *sql.DB
	sumulaRepo  repositories.SumulaRepository
	scoreRepo   repositories.PlayerScoreRepository
	playerRepo  repositories.PlayerRepository
	staffRepo   repositories.StaffRepository
	permissions PermissionService
	logger      *slog.Logger
}

func NewSumulaService(
	db *sql.DB,
	sumulaRepo repositories.SumulaRepository,
	scoreRepo repositories.PlayerScoreRepository,
	playerRepo repositories.PlayerRepository,
	staffRepo repositories.StaffRepository,
	permissions PermissionService,
	logger *slog.Logger,
) SumulaService {
	return &sumulaService{
		db:          db,
		sumulaRepo:  sumulaRepo,
		scoreRepo:   scoreRepo,
		playerRepo:  playerRepo,
		staffRepo:   staffRepo,
		permissions: permissions,
		logger:      logger,
	}
}

func (s *sumulaService) Create(ctx context.Context, userID, eventID int, kind models.SumulaKind, input CreateSumulaInput) (*models.Sumula, error) {
	if !kind.Valid() {
		return nil, ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapAddSumulaEvent, eventID); err != nil {
		return nil, err
	}
	if kind == models.SumulaClassificatoria && input.Name == "" {
		return nil, ErrSumulaNameRequired
	}

	// Игроки и арбитры проверяются до транзакции: пакет либо валиден
	// целиком, либо отклоняется без побочных эффектов.
	for _, playerID := range input.PlayerIDs {
		if err := s.requirePlayerInEvent(ctx, playerID, eventID); err != nil {
			return nil, err
		}
	}
	referees := make([]*models.Staff, 0, len(input.RefereeIDs))
	for _, staffID := range input.RefereeIDs {
		staff, err := s.staffRepo.GetByID(ctx, staffID, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrStaffNotFound) {
				return nil, ErrNotEventStaff
			}
			return nil, fmt.Errorf("failed to get staff %d: %w", staffID, err)
		}
		referees = append(referees, staff)
	}

	sumula := &models.Sumula{
		Kind:        kind,
		Name:        input.Name,
		Active:      true,
		Description: input.Description,
		EventID:     eventID,
		Rounds:      input.Rounds,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if kind == models.SumulaImortal {
		max, lockErr := s.sumulaRepo.LockMaxImortalNumber(ctx, tx, eventID)
		if lockErr != nil {
			return nil, fmt.Errorf("failed to lock imortal numbers: %w", lockErr)
		}
		number := max + 1
		sumula.Number = &number
		if sumula.Name == "" {
			sumula.Name = models.ImortalName(number)
		}
	}

	if err := s.sumulaRepo.Create(ctx, tx, sumula); err != nil {
		return nil, fmt.Errorf("failed to create sumula: %w", err)
	}
	for _, playerID := range input.PlayerIDs {
		score := &models.PlayerScore{
			PlayerID: playerID,
			EventID:  eventID,
		}
		if kind == models.SumulaImortal {
			score.SumulaImortalID = &sumula.ID
		} else {
			score.SumulaClassificatoriaID = &sumula.ID
		}
		if err := s.scoreRepo.Create(ctx, tx, score); err != nil {
			return nil, fmt.Errorf("failed to create score for player %d: %w", playerID, err)
		}
		sumula.PlayerScores = append(sumula.PlayerScores, *score)
	}

	for _, staff := range referees {
		if err := s.sumulaRepo.AddReferee(ctx, tx, sumula.ID, staff.ID); err != nil {
			return nil, fmt.Errorf("failed to assign referee %d: %w", staff.ID, err)
		}
		sumula.Referees = append(sumula.Referees, *staff)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sumula creation: %w", err)
	}

	s.logger.Info("sumula created",
		slog.Int("sumula_id", sumula.ID),
		slog.String("kind", string(kind)),
		slog.Int("event_id", eventID))
	return sumula, nil
}

func (s *sumulaService) Get(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) (*models.Sumula, error) {
	if !kind.Valid() {
		return nil, ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapViewSumulaEvent, eventID); err != nil {
		return nil, err
	}

	sumula, err := s.getSumulaInEvent(ctx, sumulaID, kind, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.attachDetails(ctx, sumula); err != nil {
		return nil, err
	}
	return sumula, nil
}

func (s *sumulaService) List(ctx context.Context, userID, eventID int, kind models.SumulaKind, active *bool) ([]*models.Sumula, error) {
	if !kind.Valid() {
		return nil, ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapViewSumulaEvent, eventID); err != nil {
		return nil, err
	}

	sumulas, err := s.sumulaRepo.ListByEvent(ctx, eventID, kind, active)
	if err != nil {
		return nil, fmt.Errorf("failed to list sumulas of event %d: %w", eventID, err)
	}
	for _, sumula := range sumulas {
		if err := s.attachDetails(ctx, sumula); err != nil {
			return nil, err
		}
	}
	return sumulas, nil
}

func (s *sumulaService) ListForPlayer(ctx context.Context, userID, eventID int) ([]*models.Sumula, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewSumulaEvent, eventID); err != nil {
		return nil, err
	}
	player, err := s.playerRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player of user %d: %w", userID, err)
	}

	scores, err := s.scoreRepo.ListByPlayer(ctx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores of player %d: %w", player.ID, err)
	}

	sumulas := make([]*models.Sumula, 0, len(scores))
	for _, score := range scores {
		var (
			sumulaID int
			kind     models.SumulaKind
		)
		switch {
		case score.SumulaClassificatoriaID != nil:
			sumulaID, kind = *score.SumulaClassificatoriaID, models.SumulaClassificatoria
		case score.SumulaImortalID != nil:
			sumulaID, kind = *score.SumulaImortalID, models.SumulaImortal
		default:
			continue
		}
		sumula, getErr := s.sumulaRepo.GetByID(ctx, sumulaID, kind)
		if getErr != nil {
			if errors.Is(getErr, repositories.ErrSumulaNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get sumula %d: %w", sumulaID, getErr)
		}
		if !sumula.Active || sumula.EventID != eventID {
			continue
		}
		referees, listErr := s.sumulaRepo.ListReferees(ctx, sumula.ID)
		if listErr != nil {
			return nil, fmt.Errorf("failed to list referees of sumula %d: %w", sumula.ID, listErr)
		}
		for _, staff := range referees {
			sumula.Referees = append(sumula.Referees, *staff)
		}
		sumulas = append(sumulas, sumula)
	}
	return sumulas, nil
}

func (s *sumulaService) Close(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind, input CloseSumulaInput) (*models.Sumula, error) {
	if !kind.Valid() {
		return nil, ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapChangeSumulaEvent, eventID); err != nil {
		return nil, err
	}

	sumula, err := s.getSumulaInEvent(ctx, sumulaID, kind, eventID)
	if err != nil {
		return nil, err
	}

	// Право change_sumula_event необходимо, но недостаточно: закрыть
	// сумулу может только назначенный на нее арбитр.
	staff, err := s.staffRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffNotFound) {
			return nil, ErrNotEventStaff
		}
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	isReferee, err := s.sumulaRepo.IsReferee(ctx, sumula.ID, staff.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check referee assignment: %w", err)
	}
	if !isReferee {
		return nil, ErrNotSumulaReferee
	}

	for _, playerID := range input.ImortalPlayerIDs {
		if err := s.requirePlayerInEvent(ctx, playerID, eventID); err != nil {
			return nil, err
		}
	}
	for _, update := range input.Scores {
		if update.Points < 0 {
			return nil, ErrNegativePoints
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := make(map[int]struct{})
	for _, update := range input.Scores {
		score, getErr := s.scoreRepo.GetByID(ctx, tx, update.ID)
		if getErr != nil {
			if errors.Is(getErr, repositories.ErrPlayerScoreNotFound) {
				return nil, ErrPlayerScoreNotFound
			}
			return nil, fmt.Errorf("failed to get score %d: %w", update.ID, getErr)
		}
		if !scoreBelongsToSumula(score, sumula) {
			return nil, ErrScoreSumulaMismatch
		}
		if err := s.scoreRepo.UpdatePoints(ctx, tx, score.ID, update.Points); err != nil {
			return nil, fmt.Errorf("failed to update score %d: %w", score.ID, err)
		}
		if err := s.scoreRepo.UpdateRoundsNumber(ctx, tx, score.ID, update.RoundsNumber); err != nil {
			return nil, fmt.Errorf("failed to update rounds of score %d: %w", score.ID, err)
		}
		touched[score.PlayerID] = struct{}{}
	}
	for playerID := range touched {
		total, sumErr := s.scoreRepo.SumPointsByPlayer(ctx, tx, playerID)
		if sumErr != nil {
			return nil, fmt.Errorf("failed to sum points for player %d: %w", playerID, sumErr)
		}
		if err := s.playerRepo.UpdateTotalScore(ctx, tx, playerID, total); err != nil {
			return nil, fmt.Errorf("failed to update total for player %d: %w", playerID, err)
		}
	}

	if input.Name != "" {
		sumula.Name = input.Name
	}
	if input.Description != "" {
		sumula.Description = input.Description
	}
	if input.Rounds != nil {
		sumula.Rounds = input.Rounds
	}
	sumula.Active = false
	if err := s.sumulaRepo.Update(ctx, tx, sumula); err != nil {
		return nil, fmt.Errorf("failed to close sumula %d: %w", sumula.ID, err)
	}
	for _, playerID := range input.ImortalPlayerIDs {
		if err := s.playerRepo.MarkImortal(ctx, tx, playerID); err != nil {
			return nil, fmt.Errorf("failed to mark player %d imortal: %w", playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sumula close: %w", err)
	}

	s.logger.Info("sumula closed",
		slog.Int("sumula_id", sumula.ID),
		slog.Int("event_id", eventID),
		slog.Int("scores_updated", len(input.Scores)))

	if err := s.attachDetails(ctx, sumula); err != nil {
		return nil, err
	}
	return sumula, nil
}

func (s *sumulaService) AddSelfReferee(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) error {
	if !kind.Valid() {
		return ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapViewSumulaEvent, eventID); err != nil {
		return err
	}

	sumula, err := s.getSumulaInEvent(ctx, sumulaID, kind, eventID)
	if err != nil {
		return err
	}
	if !sumula.Active {
		return ErrSumulaNotFound
	}

	staff, err := s.staffRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffNotFound) {
			return ErrNotEventStaff
		}
		return fmt.Errorf("failed to get staff: %w", err)
	}
	if err := s.sumulaRepo.AddReferee(ctx, nil, sumula.ID, staff.ID); err != nil {
		return fmt.Errorf("failed to assign referee: %w", err)
	}
	return nil
}

func (s *sumulaService) Delete(ctx context.Context, userID, eventID, sumulaID int, kind models.SumulaKind) error {
	if !kind.Valid() {
		return ErrInvalidSumulaKind
	}
	if err := s.permissions.Require(ctx, userID, models.CapDeleteSumulaEvent, eventID); err != nil {
		return err
	}

	sumula, err := s.getSumulaInEvent(ctx, sumulaID, kind, eventID)
	if err != nil {
		return err
	}

	// Записи очков уходят каскадом вместе с сумулой, поэтому итоги
	// затронутых игроков пересчитываются после удаления.
	scores, err := s.scoreRepo.ListBySumula(ctx, sumula.ID, kind)
	if err != nil {
		return fmt.Errorf("failed to list scores of sumula %d: %w", sumula.ID, err)
	}
	if err := s.sumulaRepo.Delete(ctx, sumula.ID, kind); err != nil {
		if errors.Is(err, repositories.ErrSumulaNotFound) {
			return ErrSumulaNotFound
		}
		return fmt.Errorf("failed to delete sumula %d: %w", sumula.ID, err)
	}

	touched := make(map[int]struct{})
	for _, score := range scores {
		touched[score.PlayerID] = struct{}{}
	}
	for playerID := range touched {
		total, sumErr := s.scoreRepo.SumPointsByPlayer(ctx, nil, playerID)
		if sumErr != nil {
			return fmt.Errorf("failed to sum points for player %d: %w", playerID, sumErr)
		}
		if err := s.playerRepo.UpdateTotalScore(ctx, nil, playerID, total); err != nil {
			return fmt.Errorf("failed to update total for player %d: %w", playerID, err)
		}
	}
	return nil
}

func (s *sumulaService) getSumulaInEvent(ctx context.Context, sumulaID int, kind models.SumulaKind, eventID int) (*models.Sumula, error) {
	sumula, err := s.sumulaRepo.GetByID(ctx, sumulaID, kind)
	if err != nil {
		if errors.Is(err, repositories.ErrSumulaNotFound) {
			return nil, ErrSumulaNotFound
		}
		return nil, fmt.Errorf("failed to get sumula %d: %w", sumulaID, err)
	}
	if sumula.EventID != eventID {
		return nil, ErrSumulaNotFound
	}
	return sumula, nil
}

func (s *sumulaService) requirePlayerInEvent(ctx context.Context, playerID, eventID int) error {
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to get player %d: %w", playerID, err)
	}
	if player.EventID != eventID {
		return ErrPlayerNotFound
	}
	return nil
}

func (s *sumulaService) attachDetails(ctx context.Context, sumula *models.Sumula) error {
	referees, err := s.sumulaRepo.ListReferees(ctx, sumula.ID)
	if err != nil {
		return fmt.Errorf("failed to list referees of sumula %d: %w", sumula.ID, err)
	}
	sumula.Referees = sumula.Referees[:0]
	for _, staff := range referees {
		sumula.Referees = append(sumula.Referees, *staff)
	}

	scores, err := s.scoreRepo.ListBySumula(ctx, sumula.ID, sumula.Kind)
	if err != nil {
		return fmt.Errorf("failed to list scores of sumula %d: %w", sumula.ID, err)
	}
	sumula.PlayerScores = sumula.PlayerScores[:0]
	for _, score := range scores {
		player, getErr := s.playerRepo.GetByID(ctx, score.PlayerID)
		if getErr == nil {
			score.Player = player
		} else if !errors.Is(getErr, repositories.ErrPlayerNotFound) {
			return fmt.Errorf("failed to get player %d: %w", score.PlayerID, getErr)
		}
		sumula.PlayerScores = append(sumula.PlayerScores, *score)
	}
	return nil
}

func scoreBelongsToSumula(score *models.PlayerScore, sumula *models.Sumula) bool {
	if sumula.Kind == models.SumulaImortal {
		return score.SumulaImortalID != nil && *score.SumulaImortalID == sumula.ID
	}
	return score.SumulaClassificatoriaID != nil && *score.SumulaClassificatoriaID == sumula.ID
}
