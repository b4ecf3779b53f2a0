package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
	"github.com/mepa-comp/scoring-system/storage"
)

// EventService управляет жизненным циклом событий: создание из одноразового
// токена, удаление по токену, переименование и код присоединения.
type EventService interface {
	// CreateFromToken создает событие из неиспользованного токена, помечает
	// токен использованным, создает пустые итоги и выдает создателю роль
	// event_admin — все в одной транзакции.
	CreateFromToken(ctx context.Context, userID int, tokenCode, name string) (*models.Event, error)

	// DeleteByTokenCode удаляет событие, созданное из данного токена.
	// Требует права delete_event на разрешенное событие. Токен остается
	// использованным: один токен авторизует ровно одно создание события.
	DeleteByTokenCode(ctx context.Context, userID int, tokenCode string) error

	GetByID(ctx context.Context, userID, eventID int) (*models.Event, error)
	Rename(ctx context.Context, userID, eventID int, name string) (*models.Event, error)
	RegenerateJoinCode(ctx context.Context, userID, eventID int) (*models.Event, error)

	// ListForUser возвращает события пользователя с его наивысшей ролью
	// в каждом: admin > manager > staff > player.
	ListForUser(ctx context.Context, userID int) ([]models.UserEvent, error)

	UploadLogo(ctx context.Context, userID, eventID int, contentType string, file io.Reader) (*models.Event, error)
}

type eventService struct {
	db             *sql.DB
	tokenRepo      repositories.TokenRepository
	eventRepo      repositories.EventRepository
	resultsRepo    repositories.ResultsRepository
	userRepo       repositories.UserRepository
	staffRepo      repositories.StaffRepository
	playerRepo     repositories.PlayerRepository
	permissionRepo repositories.PermissionRepository
	permissions    PermissionService
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewEventService(
	db *sql.DB,
	tokenRepo repositories.TokenRepository,
	eventRepo repositories.EventRepository,
	resultsRepo repositories.ResultsRepository,
	userRepo repositories.UserRepository,
	staffRepo repositories.StaffRepository,
	playerRepo repositories.PlayerRepository,
	permissionRepo repositories.PermissionRepository,
	permissions PermissionService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) EventService {
	return &eventService{
		db:             db,
		tokenRepo:      tokenRepo,
		eventRepo:      eventRepo,
		resultsRepo:    resultsRepo,
		userRepo:       userRepo,
		staffRepo:      staffRepo,
		playerRepo:     playerRepo,
		permissionRepo: permissionRepo,
		permissions:    permissions,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *eventService) CreateFromToken(ctx context.Context, userID int, tokenCode, name string) (*models.Event, error) {
	tokenCode = strings.TrimSpace(tokenCode)
	name = strings.TrimSpace(name)
	if tokenCode == "" {
		return nil, ErrTokenNotProvided
	}
	if name == "" {
		return nil, ErrEventNameRequired
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	token, err := s.tokenRepo.GetByCode(ctx, tokenCode)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token.Used {
		return nil, ErrTokenAlreadyUsed
	}

	// Защитная проверка: при 1:1 токен-событие сюда попасть нельзя,
	// но used-флаг мог разойтись с фактом существования события.
	if _, err := s.eventRepo.GetByTokenID(ctx, token.ID); err == nil {
		return nil, ErrEventAlreadyCreated
	} else if !errors.Is(err, repositories.ErrEventNotFound) {
		return nil, fmt.Errorf("failed to check existing event: %w", err)
	}

	joinCode, err := generateUniqueCode(ctx, s.eventRepo.JoinCodeExists)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		TokenID:    token.ID,
		Name:       name,
		Active:     true,
		AdminEmail: user.Email,
		JoinCode:   joinCode,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.tokenRepo.MarkUsed(ctx, tx, token.ID); err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			// Токен потреблен конкурентной транзакцией.
			return nil, ErrTokenAlreadyUsed
		}
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		if errors.Is(err, repositories.ErrEventTokenConflict) {
			return nil, ErrEventAlreadyCreated
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	if err := s.resultsRepo.Create(ctx, tx, &models.Results{EventID: event.ID}); err != nil {
		return nil, fmt.Errorf("failed to create results for event %d: %w", event.ID, err)
	}
	if err := s.permissions.GrantRoleOnEvent(ctx, tx, userID, models.RoleEventAdmin, event.ID); err != nil {
		return nil, fmt.Errorf("failed to grant event admin role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event creation: %w", err)
	}

	s.logger.Info("event created",
		slog.Int("event_id", event.ID),
		slog.Int("user_id", userID))

	s.populateLogoURL(event)
	return event, nil
}

func (s *eventService) DeleteByTokenCode(ctx context.Context, userID int, tokenCode string) error {
	tokenCode = strings.TrimSpace(tokenCode)
	if tokenCode == "" {
		return ErrTokenNotProvided
	}

	token, err := s.tokenRepo.GetByCode(ctx, tokenCode)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to get token: %w", err)
	}

	event, err := s.eventRepo.GetByTokenID(ctx, token.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event by token: %w", err)
	}

	if err := s.permissions.Require(ctx, userID, models.CapDeleteEvent, event.ID); err != nil {
		return err
	}

	// Каскад БД удаляет staff, players, sumulas, scores и results.
	// Токен намеренно не возвращается в состояние unused.
	if err := s.eventRepo.Delete(ctx, event.ID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to delete event %d: %w", event.ID, err)
	}
	if err := s.permissions.RevokeAllOnEvent(ctx, event.ID); err != nil {
		s.logger.Error("failed to revoke permissions after event deletion",
			slog.Int("event_id", event.ID), slog.Any("error", err))
	}

	s.logger.Info("event deleted",
		slog.Int("event_id", event.ID),
		slog.Int("user_id", userID))
	return nil
}

func (s *eventService) GetByID(ctx context.Context, userID, eventID int) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, models.CapViewEvent, event.ID); err != nil {
		return nil, err
	}
	s.populateLogoURL(event)
	return event, nil
}

func (s *eventService) Rename(ctx context.Context, userID, eventID int, name string) (*models.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEventNameRequired
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, event.ID); err != nil {
		return nil, err
	}

	event.Name = name
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to rename event %d: %w", eventID, err)
	}
	s.populateLogoURL(event)
	return event, nil
}

func (s *eventService) RegenerateJoinCode(ctx context.Context, userID, eventID int) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, event.ID); err != nil {
		return nil, err
	}

	joinCode, err := generateUniqueCode(ctx, s.eventRepo.JoinCodeExists)
	if err != nil {
		return nil, err
	}
	if err := s.eventRepo.UpdateJoinCode(ctx, event.ID, joinCode); err != nil {
		return nil, fmt.Errorf("failed to update join code: %w", err)
	}
	event.JoinCode = joinCode
	s.populateLogoURL(event)
	return event, nil
}

func (s *eventService) ListForUser(ctx context.Context, userID int) ([]models.UserEvent, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	eventIDs, err := s.permissionRepo.ListEventIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for user %d: %w", userID, err)
	}
	events, err := s.eventRepo.ListByIDs(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	userEvents := make([]models.UserEvent, 0, len(events))
	for _, event := range events {
		role, err := s.resolveRole(ctx, user, event)
		if err != nil {
			return nil, err
		}
		if role == "" {
			continue
		}
		s.populateLogoURL(event)
		userEvents = append(userEvents, models.UserEvent{Event: event, Role: role})
	}
	return userEvents, nil
}

// resolveRole возвращает наивысшую роль пользователя в событии.
func (s *eventService) resolveRole(ctx context.Context, user *models.User, event *models.Event) (models.EventRole, error) {
	if event.AdminEmail == user.Email {
		return models.EventRoleAdmin, nil
	}

	staff, err := s.staffRepo.GetByEventAndUser(ctx, event.ID, user.ID)
	if err == nil {
		if staff.IsManager {
			return models.EventRoleManager, nil
		}
		return models.EventRoleStaff, nil
	}
	if !errors.Is(err, repositories.ErrStaffNotFound) {
		return "", fmt.Errorf("failed to resolve staff role: %w", err)
	}

	_, err = s.playerRepo.GetByEventAndUser(ctx, event.ID, user.ID)
	if err == nil {
		return models.EventRolePlayer, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return "", fmt.Errorf("failed to resolve player role: %w", err)
	}
	return "", nil
}

func (s *eventService) UploadLogo(ctx context.Context, userID, eventID int, contentType string, file io.Reader) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, event.ID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("events/%d/logo", event.ID)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload event logo: %w", err)
	}
	if err := s.eventRepo.UpdateLogoKey(ctx, event.ID, &key); err != nil {
		return nil, fmt.Errorf("failed to store logo key: %w", err)
	}
	event.LogoKey = &key
	s.populateLogoURL(event)
	return event, nil
}

func (s *eventService) getEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	return event, nil
}

func (s *eventService) populateLogoURL(event *models.Event) {
	if event == nil || event.LogoKey == nil || *event.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*event.LogoKey); url != "" {
		event.LogoURL = &url
	}
}
