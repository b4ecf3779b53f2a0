package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

type PlayerInput struct {
	FullName          string `json:"full_name"`
	SocialName        string `json:"social_name"`
	RegistrationEmail string `json:"registration_email"`
	IsPresent         bool   `json:"is_present"`
}

// PlayerService управляет игроками события: самостоятельное присоединение
// по коду, ручное добавление персоналом, выборки для сумул.
type PlayerService interface {
	// JoinEvent привязывает пользователя к событию как игрока по коду
	// присоединения. Если запись с email пользователя уже заведена
	// (предрегистрация), она связывается с аккаунтом; иначе создается
	// новая. В обоих случаях пользователю выдается роль player.
	JoinEvent(ctx context.Context, userID int, joinCode string) (*models.Player, error)

	// AddPlayer заводит игрока вручную. По (email, событие) идемпотентно:
	// существующая запись возвращается без изменений.
	AddPlayer(ctx context.Context, userID, eventID int, input PlayerInput) (*models.Player, error)

	Get(ctx context.Context, userID, eventID, playerID int) (*models.Player, error)
	List(ctx context.Context, userID, eventID int) ([]*models.Player, error)
	Update(ctx context.Context, userID, eventID, playerID int, input PlayerInput) (*models.Player, error)
	Delete(ctx context.Context, userID, eventID, playerID int) error

	// ListForSumula возвращает кандидатов в классификаторную сумулу:
	// игроков события, еще не ставших имортальными.
	ListForSumula(ctx context.Context, userID, eventID int) ([]*models.Player, error)

	// ListForImortalSumula возвращает кандидатов в имортальную сумулу:
	// неимортальных игроков с положительным итогом.
	ListForImortalSumula(ctx context.Context, userID, eventID int) ([]*models.Player, error)
}

type playerService struct {
	db          *sql.DB
	playerRepo  repositories.PlayerRepository
	eventRepo   repositories.EventRepository
	userRepo    repositories.UserRepository
	permissions PermissionService
	logger      *slog.Logger
}

func NewPlayerService(
	db *sql.DB,
	playerRepo repositories.PlayerRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	permissions PermissionService,
	logger *slog.Logger,
) PlayerService {
	return &playerService{
		db:          db,
		playerRepo:  playerRepo,
		eventRepo:   eventRepo,
		userRepo:    userRepo,
		permissions: permissions,
		logger:      logger,
	}
}

func (s *playerService) JoinEvent(ctx context.Context, userID int, joinCode string) (*models.Player, error) {
	joinCode = strings.TrimSpace(joinCode)
	if joinCode == "" {
		return nil, ErrJoinCodeNotProvided
	}

	event, err := s.eventRepo.GetByJoinCode(ctx, joinCode)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by join code: %w", err)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	player, err := s.playerRepo.GetByEventAndEmail(ctx, event.ID, user.Email)
	switch {
	case err == nil:
		if player.UserID != nil {
			if *player.UserID == userID {
				return nil, ErrPlayerAlreadyInEvent
			}
			// Email предрегистрации занят другим аккаунтом.
			return nil, fmt.Errorf("%w: registration email is linked to another account", ErrValidationFailed)
		}
		player.UserID = &userID
		if player.FullName == "" {
			player.FullName = user.FullName
		}
		if updateErr := s.playerRepo.Update(ctx, player); updateErr != nil {
			return nil, fmt.Errorf("failed to link player to user: %w", updateErr)
		}
	case errors.Is(err, repositories.ErrPlayerNotFound):
		player = &models.Player{
			FullName:          user.FullName,
			RegistrationEmail: user.Email,
			UserID:            &userID,
			EventID:           event.ID,
		}
		if createErr := s.playerRepo.Create(ctx, player); createErr != nil {
			if errors.Is(createErr, repositories.ErrPlayerUserConflict) {
				return nil, ErrPlayerAlreadyInEvent
			}
			return nil, fmt.Errorf("failed to create player: %w", createErr)
		}
	default:
		return nil, fmt.Errorf("failed to look up player: %w", err)
	}

	if err := s.permissions.GrantRoleOnEvent(ctx, nil, userID, models.RolePlayer, event.ID); err != nil {
		return nil, err
	}

	s.logger.Info("player joined event",
		slog.Int("player_id", player.ID),
		slog.Int("event_id", event.ID),
		slog.Int("user_id", userID))
	return player, nil
}

func (s *playerService) AddPlayer(ctx context.Context, userID, eventID int, input PlayerInput) (*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapAddPlayerEvent, eventID); err != nil {
		return nil, err
	}

	fullName, email := normalizeNameAndEmail(input.FullName, input.RegistrationEmail)
	if email == "" {
		return nil, ErrEmailRequired
	}

	player := &models.Player{
		FullName:          fullName,
		SocialName:        strings.TrimSpace(input.SocialName),
		RegistrationEmail: email,
		IsPresent:         input.IsPresent,
		EventID:           eventID,
	}
	if _, err := s.playerRepo.GetOrCreate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}
	return player, nil
}

func (s *playerService) Get(ctx context.Context, userID, eventID, playerID int) (*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewPlayerEvent, eventID); err != nil {
		return nil, err
	}
	return s.getPlayerInEvent(ctx, playerID, eventID)
}

func (s *playerService) List(ctx context.Context, userID, eventID int) ([]*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewPlayerEvent, eventID); err != nil {
		return nil, err
	}
	return s.playerRepo.ListByEvent(ctx, eventID, repositories.ListPlayersFilter{})
}

func (s *playerService) Update(ctx context.Context, userID, eventID, playerID int, input PlayerInput) (*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangePlayerEvent, eventID); err != nil {
		return nil, err
	}

	player, err := s.getPlayerInEvent(ctx, playerID, eventID)
	if err != nil {
		return nil, err
	}

	fullName, email := normalizeNameAndEmail(input.FullName, input.RegistrationEmail)
	if fullName != "" {
		player.FullName = fullName
	}
	if email != "" {
		player.RegistrationEmail = email
	}
	player.SocialName = strings.TrimSpace(input.SocialName)
	player.IsPresent = input.IsPresent

	if err := s.playerRepo.Update(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerEmailConflict) {
			return nil, ErrPlayerAlreadyInEvent
		}
		return nil, fmt.Errorf("failed to update player %d: %w", playerID, err)
	}
	return player, nil
}

func (s *playerService) Delete(ctx context.Context, userID, eventID, playerID int) error {
	if err := s.permissions.Require(ctx, userID, models.CapDeletePlayerEvent, eventID); err != nil {
		return err
	}
	if err := s.playerRepo.Delete(ctx, playerID, eventID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to delete player %d: %w", playerID, err)
	}
	return nil
}

func (s *playerService) ListForSumula(ctx context.Context, userID, eventID int) ([]*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewPlayerEvent, eventID); err != nil {
		return nil, err
	}
	notImortal := false
	return s.playerRepo.ListByEvent(ctx, eventID, repositories.ListPlayersFilter{
		IsImortal: &notImortal,
	})
}

func (s *playerService) ListForImortalSumula(ctx context.Context, userID, eventID int) ([]*models.Player, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewPlayerEvent, eventID); err != nil {
		return nil, err
	}
	notImortal := false
	minScore := 0
	return s.playerRepo.ListByEvent(ctx, eventID, repositories.ListPlayersFilter{
		IsImortal: &notImortal,
		MinScore:  &minScore,
	})
}

func (s *playerService) getPlayerInEvent(ctx context.Context, playerID, eventID int) (*models.Player, error) {
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
	return player, nil
}

// normalizeNameAndEmail приводит импортируемые данные к каноническому виду:
// имя — с заглавной буквы в каждом слове, email — в нижнем регистре.
func normalizeNameAndEmail(name, email string) (string, string) {
	words := strings.Fields(strings.TrimSpace(name))
	for i, w := range words {
		// Первая буква может занимать несколько байт ("Érica", "Ágata").
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " "), strings.ToLower(strings.TrimSpace(email))
}
