package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mepa-comp/scoring-system/models"
)

type resultsServiceFixture struct {
	service     ResultsService
	resultsRepo *fakeResultsRepo
	playerRepo  *fakePlayerRepo
	eventRepo   *fakeEventRepo
	permissions PermissionService
}

func newResultsServiceFixture(t *testing.T) *resultsServiceFixture {
	t.Helper()
	f := &resultsServiceFixture{
		playerRepo: newFakePlayerRepo(),
		eventRepo:  newFakeEventRepo(),
	}
	f.resultsRepo = newFakeResultsRepo(f.playerRepo)
	f.permissions = NewPermissionService(newFakePermissionRepo())
	f.service = NewResultsService(
		newTestDB(t),
		f.resultsRepo,
		f.playerRepo,
		f.eventRepo,
		f.permissions,
		newTestLogger(),
	)
	return f
}

// mustAddEvent заводит событие вместе с пустыми итогами, как это делает
// создание события из токена.
func (f *resultsServiceFixture) mustAddEvent(t *testing.T, adminID int) *models.Event {
	t.Helper()
	ctx := context.Background()
	event := &models.Event{
		TokenID:    f.eventRepo.nextID + 1,
		Name:       "Copa MEPA",
		Active:     true,
		AdminEmail: "admin@example.com",
		JoinCode:   fmt.Sprintf("JOIN%04d", f.eventRepo.nextID+1),
	}
	if err := f.eventRepo.Create(ctx, nil, event); err != nil {
		t.Fatalf("failed to add event: %v", err)
	}
	if err := f.resultsRepo.Create(ctx, nil, &models.Results{EventID: event.ID}); err != nil {
		t.Fatalf("failed to add results: %v", err)
	}
	if err := f.permissions.GrantRoleOnEvent(ctx, nil, adminID, models.RoleEventAdmin, event.ID); err != nil {
		t.Fatalf("failed to grant admin role: %v", err)
	}
	return event
}

func (f *resultsServiceFixture) mustAddImortal(t *testing.T, eventID int, name, email string, total int) *models.Player {
	t.Helper()
	ctx := context.Background()
	player := f.playerRepo.mustAdd(t, eventID, name, email)
	player.IsImortal = true
	if err := f.playerRepo.Update(ctx, player); err != nil {
		t.Fatalf("failed to mark imortal: %v", err)
	}
	if err := f.playerRepo.UpdateTotalScore(ctx, nil, player.ID, total); err != nil {
		t.Fatalf("failed to set total: %v", err)
	}
	player.TotalScore = total
	return player
}

func TestCalculateImortalsTopThree(t *testing.T) {
	ctx := context.Background()
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)

	f.mustAddImortal(t, event.ID, "Ana Souza", "ana@example.com", 10)
	second := f.mustAddImortal(t, event.ID, "Bia Lima", "bia@example.com", 30)
	first := f.mustAddImortal(t, event.ID, "Caio Reis", "caio@example.com", 40)
	third := f.mustAddImortal(t, event.ID, "Davi Melo", "davi@example.com", 20)
	// Неимортальный игрок с большим итогом в топ не попадает.
	outsider := f.playerRepo.mustAdd(t, event.ID, "Eva Dias", "eva@example.com")
	if err := f.playerRepo.UpdateTotalScore(ctx, nil, outsider.ID, 99); err != nil {
		t.Fatalf("failed to set total: %v", err)
	}

	top, err := f.service.CalculateImortals(ctx, adminID, event.ID)
	if err != nil {
		t.Fatalf("CalculateImortals failed: %v", err)
	}
	if len(top) != models.MaxImortals {
		t.Fatalf("expected %d players, got %d", models.MaxImortals, len(top))
	}
	for i, want := range []*models.Player{first, second, third} {
		if top[i].ID != want.ID {
			t.Fatalf("position %d: expected player %d, got %d", i, want.ID, top[i].ID)
		}
	}
}

func TestPublishRequiresAtLeastOneField(t *testing.T) {
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)

	_, err := f.service.Publish(context.Background(), adminID, event.ID, PublishResultsInput{})
	if !errors.Is(err, ErrResultsNoFields) {
		t.Fatalf("expected ErrResultsNoFields, got %v", err)
	}
}

func TestPublishTop4SizeLimit(t *testing.T) {
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)

	_, err := f.service.Publish(context.Background(), adminID, event.ID, PublishResultsInput{
		Top4IDs: []int{1, 2, 3, 4, 5},
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestPublishRejectsForeignPlayer(t *testing.T) {
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)
	foreignEvent := f.mustAddEvent(t, adminID)
	foreign := f.playerRepo.mustAdd(t, foreignEvent.ID, "Bia Lima", "bia@example.com")

	_, err := f.service.Publish(context.Background(), adminID, event.ID, PublishResultsInput{
		PaladinID: &foreign.ID,
	})
	if !errors.Is(err, ErrResultsPlayerWrongEvent) {
		t.Fatalf("expected ErrResultsPlayerWrongEvent, got %v", err)
	}
}

func TestPublishAndGetFinalResults(t *testing.T) {
	ctx := context.Background()
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)

	players := make([]*models.Player, 0, 4)
	for _, spec := range []struct{ name, email string }{
		{"Ana Souza", "ana@example.com"},
		{"Bia Lima", "bia@example.com"},
		{"Caio Reis", "caio@example.com"},
		{"Davi Melo", "davi@example.com"},
	} {
		players = append(players, f.playerRepo.mustAdd(t, event.ID, spec.name, spec.email))
	}
	top4IDs := []int{players[0].ID, players[1].ID, players[2].ID, players[3].ID}

	published, err := f.service.Publish(ctx, adminID, event.ID, PublishResultsInput{
		Top4IDs:      top4IDs,
		PaladinID:    &players[0].ID,
		AmbassadorID: &players[1].ID,
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(published.Top4) != 4 {
		t.Fatalf("expected 4 players in top4, got %d", len(published.Top4))
	}
	if published.Paladin == nil || published.Paladin.ID != players[0].ID {
		t.Fatal("expected paladin to be attached")
	}

	reloaded, err := f.eventRepo.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if !reloaded.IsFinalResultsPublished {
		t.Fatal("expected final publish flag to be set")
	}
	if reloaded.IsImortalResultsPublished {
		t.Fatal("imortal publish flag must stay unset")
	}

	results, err := f.service.Get(ctx, adminID, event.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(results.Top4) != 4 {
		t.Fatalf("expected 4 players in top4, got %d", len(results.Top4))
	}
	// Имортальная секция не публиковалась и остается пустой.
	if len(results.Imortals) != 0 {
		t.Fatalf("expected empty imortal section, got %d", len(results.Imortals))
	}
}

func TestGetBeforeAnyPublish(t *testing.T) {
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)

	_, err := f.service.Get(context.Background(), adminID, event.ID)
	if !errors.Is(err, ErrResultsNotPublished) {
		t.Fatalf("expected ErrResultsNotPublished, got %v", err)
	}
}

func TestPublishImortalsHidesFinalSection(t *testing.T) {
	ctx := context.Background()
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)
	f.mustAddImortal(t, event.ID, "Ana Souza", "ana@example.com", 10)
	paladin := f.playerRepo.mustAdd(t, event.ID, "Bia Lima", "bia@example.com")

	// Паладин назначен, но финальные итоги не публиковались.
	results, err := f.resultsRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	results.PaladinID = &paladin.ID
	if err := f.resultsRepo.UpdateAwards(ctx, results); err != nil {
		t.Fatalf("failed to set paladin: %v", err)
	}

	if _, err := f.service.PublishImortals(ctx, adminID, event.ID); err != nil {
		t.Fatalf("PublishImortals failed: %v", err)
	}

	got, err := f.service.Get(ctx, adminID, event.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Imortals) != 1 {
		t.Fatalf("expected 1 imortal, got %d", len(got.Imortals))
	}
	if got.PaladinID != nil || got.Paladin != nil {
		t.Fatal("unpublished final section must be hidden")
	}
}

func TestRevokeClearsEverything(t *testing.T) {
	ctx := context.Background()
	f := newResultsServiceFixture(t)
	const adminID = 1
	event := f.mustAddEvent(t, adminID)
	f.mustAddImortal(t, event.ID, "Ana Souza", "ana@example.com", 10)
	paladin := f.playerRepo.mustAdd(t, event.ID, "Bia Lima", "bia@example.com")

	if _, err := f.service.PublishImortals(ctx, adminID, event.ID); err != nil {
		t.Fatalf("PublishImortals failed: %v", err)
	}
	if _, err := f.service.Publish(ctx, adminID, event.ID, PublishResultsInput{
		Top4IDs:   []int{paladin.ID},
		PaladinID: &paladin.ID,
	}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := f.service.Revoke(ctx, adminID, event.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	reloaded, err := f.eventRepo.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if reloaded.IsFinalResultsPublished || reloaded.IsImortalResultsPublished {
		t.Fatal("publish flags must be cleared")
	}
	if _, err := f.service.Get(ctx, adminID, event.ID); !errors.Is(err, ErrResultsNotPublished) {
		t.Fatalf("expected ErrResultsNotPublished after revoke, got %v", err)
	}

	stored, err := f.resultsRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	if stored.PaladinID != nil {
		t.Fatal("paladin must be cleared")
	}
	imortals, _ := f.resultsRepo.ListImortals(ctx, stored.ID)
	if len(imortals) != 0 {
		t.Fatalf("imortal top must be cleared, got %d entries", len(imortals))
	}
}

func TestResultsForbiddenWithoutCapability(t *testing.T) {
	f := newResultsServiceFixture(t)
	event := f.mustAddEvent(t, 1)

	if _, err := f.service.CalculateImortals(context.Background(), 99, event.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
	if _, err := f.service.Get(context.Background(), 99, event.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation, got %v", err)
	}
}
