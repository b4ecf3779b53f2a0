package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

type StaffInput struct {
	FullName          string `json:"full_name"`
	RegistrationEmail string `json:"registration_email"`
	IsManager         bool   `json:"is_manager"`
}

// BulkUpsertReport — итог пакетного импорта персонала.
type BulkUpsertReport struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// StaffService управляет персоналом события. Запись персонала заводится
// администратором заранее (поштучно или импортом), а пользователь
// привязывается к ней по коду присоединения и email регистрации.
type StaffService interface {
	// JoinEvent привязывает пользователя к предзаведенной записи персонала
	// и выдает роль staff_manager или staff_member по флагу is_manager.
	JoinEvent(ctx context.Context, userID int, joinCode string) (*models.Staff, error)

	List(ctx context.Context, userID, eventID int) ([]*models.Staff, error)
	Add(ctx context.Context, userID, eventID int, input StaffInput) (*models.Staff, error)

	// Update меняет данные записи. Повышение до менеджера расширяет права
	// уже привязанного пользователя до staff_manager.
	Update(ctx context.Context, userID, eventID, staffID int, input StaffInput) (*models.Staff, error)

	// BulkUpsert импортирует строки персонала по (email, событие):
	// существующие записи пропускаются, новые создаются. При notify
	// новым получателям отправляется письмо с кодом присоединения.
	BulkUpsert(ctx context.Context, userID, eventID int, rows []StaffInput, notify bool) (*BulkUpsertReport, error)
}

type staffService struct {
	staffRepo   repositories.StaffRepository
	eventRepo   repositories.EventRepository
	userRepo    repositories.UserRepository
	permissions PermissionService
	email       EmailSender
	logger      *slog.Logger
}

func NewStaffService(
	staffRepo repositories.StaffRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	permissions PermissionService,
	email EmailSender,
	logger *slog.Logger,
) StaffService {
	return &staffService{
		staffRepo:   staffRepo,
		eventRepo:   eventRepo,
		userRepo:    userRepo,
		permissions: permissions,
		email:       email,
		logger:      logger,
	}
}

func (s *staffService) JoinEvent(ctx context.Context, userID int, joinCode string) (*models.Staff, error) {
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

	staff, err := s.staffRepo.GetByEventAndEmail(ctx, event.ID, user.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffNotFound) {
			// Присоединиться персоналом может только предзаведенный email.
			return nil, ErrNotEventStaff
		}
		return nil, fmt.Errorf("failed to look up staff: %w", err)
	}
	if staff.UserID != nil {
		if *staff.UserID == userID {
			return nil, ErrStaffAlreadyInEvent
		}
		return nil, fmt.Errorf("%w: registration email is linked to another account", ErrValidationFailed)
	}

	staff.UserID = &userID
	if staff.FullName == "" {
		staff.FullName = user.FullName
	}
	if err := s.staffRepo.Update(ctx, staff); err != nil {
		if errors.Is(err, repositories.ErrStaffUserConflict) {
			return nil, ErrStaffAlreadyInEvent
		}
		return nil, fmt.Errorf("failed to link staff to user: %w", err)
	}

	role := models.RoleStaffMember
	if staff.IsManager {
		role = models.RoleStaffManager
	}
	if err := s.permissions.GrantRoleOnEvent(ctx, nil, userID, role, event.ID); err != nil {
		return nil, err
	}

	s.logger.Info("staff joined event",
		slog.Int("staff_id", staff.ID),
		slog.Int("event_id", event.ID),
		slog.Int("user_id", userID),
		slog.Bool("is_manager", staff.IsManager))
	return staff, nil
}

func (s *staffService) List(ctx context.Context, userID, eventID int) ([]*models.Staff, error) {
	if err := s.permissions.Require(ctx, userID, models.CapViewEvent, eventID); err != nil {
		return nil, err
	}
	return s.staffRepo.ListByEvent(ctx, eventID)
}

func (s *staffService) Add(ctx context.Context, userID, eventID int, input StaffInput) (*models.Staff, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}

	fullName, email := normalizeNameAndEmail(input.FullName, input.RegistrationEmail)
	if email == "" {
		return nil, ErrEmailRequired
	}

	staff := &models.Staff{
		FullName:          fullName,
		RegistrationEmail: email,
		IsManager:         input.IsManager,
		EventID:           eventID,
	}
	if err := s.staffRepo.Create(ctx, staff); err != nil {
		if errors.Is(err, repositories.ErrStaffEmailConflict) {
			return nil, ErrStaffAlreadyInEvent
		}
		return nil, fmt.Errorf("failed to add staff: %w", err)
	}
	return staff, nil
}

func (s *staffService) Update(ctx context.Context, userID, eventID, staffID int, input StaffInput) (*models.Staff, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}

	staff, err := s.staffRepo.GetByID(ctx, staffID, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to get staff %d: %w", staffID, err)
	}

	fullName, email := normalizeNameAndEmail(input.FullName, input.RegistrationEmail)
	if fullName != "" {
		staff.FullName = fullName
	}
	if email != "" {
		staff.RegistrationEmail = email
	}
	promoted := input.IsManager && !staff.IsManager
	staff.IsManager = input.IsManager

	if err := s.staffRepo.Update(ctx, staff); err != nil {
		if errors.Is(err, repositories.ErrStaffEmailConflict) {
			return nil, ErrStaffAlreadyInEvent
		}
		return nil, fmt.Errorf("failed to update staff %d: %w", staffID, err)
	}

	if promoted && staff.UserID != nil {
		if err := s.permissions.GrantRoleOnEvent(ctx, nil, *staff.UserID, models.RoleStaffManager, eventID); err != nil {
			return nil, err
		}
	}
	return staff, nil
}

func (s *staffService) BulkUpsert(ctx context.Context, userID, eventID int, rows []StaffInput, notify bool) (*BulkUpsertReport, error) {
	if err := s.permissions.Require(ctx, userID, models.CapChangeEvent, eventID); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}

	report := &BulkUpsertReport{}
	for _, row := range rows {
		fullName, email := normalizeNameAndEmail(row.FullName, row.RegistrationEmail)
		if email == "" {
			return nil, ErrEmailRequired
		}

		staff := &models.Staff{
			FullName:          fullName,
			RegistrationEmail: email,
			IsManager:         row.IsManager,
			EventID:           eventID,
		}
		created, err := s.staffRepo.GetOrCreate(ctx, staff)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert staff %q: %w", email, err)
		}
		if !created {
			report.Skipped++
			continue
		}
		report.Created++

		if notify && s.email != nil {
			if err := s.email.SendJoinCodeEmail(email, event.Name, event.JoinCode); err != nil {
				// Импорт не откатывается из-за почты.
				s.logger.Error("failed to send join code email",
					slog.String("email", email),
					slog.Int("event_id", eventID),
					slog.Any("error", err))
			}
		}
	}

	s.logger.Info("staff bulk upsert finished",
		slog.Int("event_id", eventID),
		slog.Int("created", report.Created),
		slog.Int("skipped", report.Skipped))
	return report, nil
}
