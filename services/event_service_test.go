package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mepa-comp/scoring-system/models"
)

type eventServiceFixture struct {
	service     EventService
	tokenRepo   *fakeTokenRepo
	eventRepo   *fakeEventRepo
	resultsRepo *fakeResultsRepo
	userRepo    *fakeUserRepo
	staffRepo   *fakeStaffRepo
	playerRepo  *fakePlayerRepo
	permRepo    *fakePermissionRepo
	permissions PermissionService
}

func newEventServiceFixture(t *testing.T) *eventServiceFixture {
	t.Helper()
	f := &eventServiceFixture{
		tokenRepo:  newFakeTokenRepo(),
		eventRepo:  newFakeEventRepo(),
		userRepo:   newFakeUserRepo(),
		staffRepo:  newFakeStaffRepo(),
		playerRepo: newFakePlayerRepo(),
		permRepo:   newFakePermissionRepo(),
	}
	f.resultsRepo = newFakeResultsRepo(f.playerRepo)
	f.permissions = NewPermissionService(f.permRepo)
	f.service = NewEventService(
		newTestDB(t),
		f.tokenRepo,
		f.eventRepo,
		f.resultsRepo,
		f.userRepo,
		f.staffRepo,
		f.playerRepo,
		f.permRepo,
		f.permissions,
		nil,
		newTestLogger(),
	)
	return f
}

func (f *eventServiceFixture) mustCreateEvent(t *testing.T, userID int, tokenCode, name string) *models.Event {
	t.Helper()
	if _, err := NewTokenService(f.tokenRepo).Create(context.Background(), tokenCode); err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	event, err := f.service.CreateFromToken(context.Background(), userID, tokenCode, name)
	if err != nil {
		t.Fatalf("CreateFromToken failed: %v", err)
	}
	return event
}

func TestCreateFromToken(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")

	event := f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	if event.Name != "Copa MEPA" {
		t.Fatalf("unexpected event name %q", event.Name)
	}
	if event.AdminEmail != admin.Email {
		t.Fatalf("expected admin email %q, got %q", admin.Email, event.AdminEmail)
	}
	if len(event.JoinCode) != codeLetterCount+codeDigitCount {
		t.Fatalf("expected join code of length %d, got %q",
			codeLetterCount+codeDigitCount, event.JoinCode)
	}

	token, err := f.tokenRepo.GetByCode(ctx, "TOKN1234")
	if err != nil {
		t.Fatalf("failed to reload token: %v", err)
	}
	if !token.Used {
		t.Fatal("token must be consumed by event creation")
	}

	if _, err := f.resultsRepo.GetByEventID(ctx, event.ID); err != nil {
		t.Fatalf("expected empty results to be created: %v", err)
	}

	// Создатель получает роль администратора события.
	if err := f.permissions.Require(ctx, admin.ID, models.CapDeleteEvent, event.ID); err != nil {
		t.Fatalf("expected creator to hold delete_event: %v", err)
	}
	ok, err := f.permissions.Check(ctx, admin.ID, models.CapAddEvent, event.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if ok {
		t.Fatal("event admin must not hold add_event")
	}
}

func TestCreateFromTokenAlreadyUsed(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	other := f.userRepo.mustAdd(t, "Bia Lima", "bia@example.com")

	f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	_, err := f.service.CreateFromToken(ctx, other.ID, "TOKN1234", "Second Event")
	if !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}
}

func TestCreateFromTokenValidation(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")

	if _, err := f.service.CreateFromToken(ctx, admin.ID, "", "Copa MEPA"); !errors.Is(err, ErrTokenNotProvided) {
		t.Fatalf("expected ErrTokenNotProvided, got %v", err)
	}
	if _, err := f.service.CreateFromToken(ctx, admin.ID, "TOKN1234", "  "); !errors.Is(err, ErrEventNameRequired) {
		t.Fatalf("expected ErrEventNameRequired, got %v", err)
	}
	if _, err := f.service.CreateFromToken(ctx, admin.ID, "NOPE0000", "Copa MEPA"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestDeleteByTokenCode(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	event := f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	if err := f.service.DeleteByTokenCode(ctx, admin.ID, "TOKN1234"); err != nil {
		t.Fatalf("DeleteByTokenCode failed: %v", err)
	}
	if _, err := f.eventRepo.GetByID(ctx, event.ID); err == nil {
		t.Fatal("expected event to be deleted")
	}

	// Токен не возвращается в оборот после удаления события.
	token, err := f.tokenRepo.GetByCode(ctx, "TOKN1234")
	if err != nil {
		t.Fatalf("failed to reload token: %v", err)
	}
	if !token.Used {
		t.Fatal("token must stay used after event deletion")
	}
	if _, err := f.service.CreateFromToken(ctx, admin.ID, "TOKN1234", "Copa MEPA 2"); !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed after deletion, got %v", err)
	}
}

func TestDeleteByTokenCodeForbidden(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	stranger := f.userRepo.mustAdd(t, "Bia Lima", "bia@example.com")
	f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	err := f.service.DeleteByTokenCode(ctx, stranger.ID, "TOKN1234")
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
}

func TestGetByIDRequiresViewCapability(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	stranger := f.userRepo.mustAdd(t, "Bia Lima", "bia@example.com")
	event := f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	if _, err := f.service.GetByID(ctx, admin.ID, event.ID); err != nil {
		t.Fatalf("GetByID failed for admin: %v", err)
	}
	if _, err := f.service.GetByID(ctx, stranger.ID, event.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
}

func TestRegenerateJoinCodeChangesCode(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	event := f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")
	oldCode := event.JoinCode

	updated, err := f.service.RegenerateJoinCode(ctx, admin.ID, event.ID)
	if err != nil {
		t.Fatalf("RegenerateJoinCode failed: %v", err)
	}
	if updated.JoinCode == oldCode {
		t.Fatal("expected a fresh join code")
	}
	if _, err := f.eventRepo.GetByJoinCode(ctx, oldCode); err == nil {
		t.Fatal("old join code must stop resolving the event")
	}
}

func TestListForUserRolePrecedence(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	admin := f.userRepo.mustAdd(t, "Ana Souza", "ana@example.com")
	manager := f.userRepo.mustAdd(t, "Bia Lima", "bia@example.com")
	monitor := f.userRepo.mustAdd(t, "Caio Reis", "caio@example.com")
	player := f.userRepo.mustAdd(t, "Davi Melo", "davi@example.com")

	event := f.mustCreateEvent(t, admin.ID, "TOKN1234", "Copa MEPA")

	addStaff := func(user *models.User, isManager bool) {
		staff := &models.Staff{
			FullName:          user.FullName,
			RegistrationEmail: user.Email,
			IsManager:         isManager,
			UserID:            &user.ID,
			EventID:           event.ID,
		}
		if err := f.staffRepo.Create(ctx, staff); err != nil {
			t.Fatalf("failed to add staff: %v", err)
		}
	}
	addStaff(manager, true)
	addStaff(monitor, false)
	if err := f.permissions.GrantRoleOnEvent(ctx, nil, manager.ID, models.RoleStaffManager, event.ID); err != nil {
		t.Fatalf("failed to grant manager role: %v", err)
	}
	if err := f.permissions.GrantRoleOnEvent(ctx, nil, monitor.ID, models.RoleStaffMember, event.ID); err != nil {
		t.Fatalf("failed to grant member role: %v", err)
	}

	playerRecord := &models.Player{
		FullName:          player.FullName,
		RegistrationEmail: player.Email,
		UserID:            &player.ID,
		EventID:           event.ID,
	}
	if err := f.playerRepo.Create(ctx, playerRecord); err != nil {
		t.Fatalf("failed to add player: %v", err)
	}
	if err := f.permissions.GrantRoleOnEvent(ctx, nil, player.ID, models.RolePlayer, event.ID); err != nil {
		t.Fatalf("failed to grant player role: %v", err)
	}

	expect := func(userID int, role models.EventRole) {
		t.Helper()
		events, err := f.service.ListForUser(ctx, userID)
		if err != nil {
			t.Fatalf("ListForUser failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Role != role {
			t.Fatalf("expected role %q, got %q", role, events[0].Role)
		}
	}
	expect(admin.ID, models.EventRoleAdmin)
	expect(manager.ID, models.EventRoleManager)
	expect(monitor.ID, models.EventRoleStaff)
	expect(player.ID, models.EventRolePlayer)
}
