package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

// Заглушка database/sql-драйвера: транзакции сервисов сводятся к no-op
// Begin/Commit/Rollback, а вся работа с данными идет через фейковые
// репозитории в памяти.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStubOnce sync.Once

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	registerStubOnce.Do(func() {
		sql.Register("stub", stubDriver{})
	})
	db, err := sql.Open("stub", "")
	if err != nil {
		t.Fatalf("failed to open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- токены ---

type fakeTokenRepo struct {
	nextID int
	tokens map[int]*models.Token
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[int]*models.Token)}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *models.Token) error {
	for _, t := range r.tokens {
		if t.Code == token.Code {
			return repositories.ErrTokenCodeConflict
		}
	}
	r.nextID++
	token.ID = r.nextID
	copied := *token
	r.tokens[token.ID] = &copied
	return nil
}

func (r *fakeTokenRepo) GetByCode(_ context.Context, code string) (*models.Token, error) {
	for _, t := range r.tokens {
		if t.Code == code {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repositories.ErrTokenNotFound
}

func (r *fakeTokenRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, t := range r.tokens {
		if t.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTokenRepo) MarkUsed(_ context.Context, _ repositories.SQLExecutor, id int) error {
	t, ok := r.tokens[id]
	if !ok || t.Used {
		return repositories.ErrTokenNotFound
	}
	t.Used = true
	return nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.tokens[id]; !ok {
		return repositories.ErrTokenNotFound
	}
	delete(r.tokens, id)
	return nil
}

// --- события ---

type fakeEventRepo struct {
	nextID int
	events map[int]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event)}
}

func (r *fakeEventRepo) Create(_ context.Context, _ repositories.SQLExecutor, event *models.Event) error {
	for _, e := range r.events {
		if e.TokenID == event.TokenID {
			return repositories.ErrEventTokenConflict
		}
		if e.JoinCode == event.JoinCode {
			return repositories.ErrEventJoinCodeConflict
		}
	}
	r.nextID++
	event.ID = r.nextID
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) GetByTokenID(_ context.Context, tokenID int) (*models.Event, error) {
	for _, e := range r.events {
		if e.TokenID == tokenID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEventNotFound
}

func (r *fakeEventRepo) GetByJoinCode(_ context.Context, joinCode string) (*models.Event, error) {
	for _, e := range r.events {
		if e.JoinCode == joinCode {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEventNotFound
}

func (r *fakeEventRepo) JoinCodeExists(_ context.Context, joinCode string) (bool, error) {
	for _, e := range r.events {
		if e.JoinCode == joinCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEventRepo) ListByIDs(_ context.Context, ids []int) ([]*models.Event, error) {
	events := make([]*models.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.events[id]; ok {
			copied := *e
			events = append(events, &copied)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })
	return events, nil
}

func (r *fakeEventRepo) Update(_ context.Context, event *models.Event) error {
	stored, ok := r.events[event.ID]
	if !ok {
		return repositories.ErrEventNotFound
	}
	stored.Name = event.Name
	stored.Active = event.Active
	stored.AdminEmail = event.AdminEmail
	stored.IsFinalResultsPublished = event.IsFinalResultsPublished
	stored.IsImortalResultsPublished = event.IsImortalResultsPublished
	stored.SumulasGenerated = event.SumulasGenerated
	return nil
}

func (r *fakeEventRepo) UpdateJoinCode(_ context.Context, id int, joinCode string) error {
	stored, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	stored.JoinCode = joinCode
	return nil
}

func (r *fakeEventRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	stored, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	stored.LogoKey = logoKey
	return nil
}

func (r *fakeEventRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.events[id]; !ok {
		return repositories.ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

// --- пользователи ---

type fakeUserRepo struct {
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) mustAdd(t *testing.T, fullName, email string) *models.User {
	t.Helper()
	user := &models.User{FullName: fullName, Email: email, PasswordHash: "x"}
	if err := r.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	return user
}

// --- персонал ---

type fakeStaffRepo struct {
	nextID int
	staff  map[int]*models.Staff
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{staff: make(map[int]*models.Staff)}
}

func (r *fakeStaffRepo) Create(_ context.Context, staff *models.Staff) error {
	for _, s := range r.staff {
		if s.EventID == staff.EventID && s.RegistrationEmail == staff.RegistrationEmail {
			return repositories.ErrStaffEmailConflict
		}
		if staff.UserID != nil && s.UserID != nil && s.EventID == staff.EventID && *s.UserID == *staff.UserID {
			return repositories.ErrStaffUserConflict
		}
	}
	r.nextID++
	staff.ID = r.nextID
	copied := *staff
	r.staff[staff.ID] = &copied
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id, eventID int) (*models.Staff, error) {
	s, ok := r.staff[id]
	if !ok || s.EventID != eventID {
		return nil, repositories.ErrStaffNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeStaffRepo) GetByEventAndEmail(_ context.Context, eventID int, email string) (*models.Staff, error) {
	for _, s := range r.staff {
		if s.EventID == eventID && s.RegistrationEmail == email {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repositories.ErrStaffNotFound
}

func (r *fakeStaffRepo) GetByEventAndUser(_ context.Context, eventID, userID int) (*models.Staff, error) {
	for _, s := range r.staff {
		if s.EventID == eventID && s.UserID != nil && *s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repositories.ErrStaffNotFound
}

func (r *fakeStaffRepo) ListByEvent(_ context.Context, eventID int) ([]*models.Staff, error) {
	staff := make([]*models.Staff, 0)
	for _, s := range r.staff {
		if s.EventID == eventID {
			copied := *s
			staff = append(staff, &copied)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].FullName < staff[j].FullName })
	return staff, nil
}

func (r *fakeStaffRepo) Update(_ context.Context, staff *models.Staff) error {
	stored, ok := r.staff[staff.ID]
	if !ok || stored.EventID != staff.EventID {
		return repositories.ErrStaffNotFound
	}
	stored.FullName = staff.FullName
	stored.RegistrationEmail = staff.RegistrationEmail
	stored.IsManager = staff.IsManager
	stored.UserID = staff.UserID
	return nil
}

func (r *fakeStaffRepo) GetOrCreate(ctx context.Context, staff *models.Staff) (bool, error) {
	existing, err := r.GetByEventAndEmail(ctx, staff.EventID, staff.RegistrationEmail)
	if err == nil {
		*staff = *existing
		return false, nil
	}
	if createErr := r.Create(ctx, staff); createErr != nil {
		return false, createErr
	}
	return true, nil
}

// --- игроки ---

type fakePlayerRepo struct {
	nextID  int
	players map[int]*models.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[int]*models.Player)}
}

func (r *fakePlayerRepo) Create(_ context.Context, player *models.Player) error {
	for _, p := range r.players {
		if p.EventID == player.EventID && p.RegistrationEmail == player.RegistrationEmail {
			return repositories.ErrPlayerEmailConflict
		}
		if player.UserID != nil && p.UserID != nil && p.EventID == player.EventID && *p.UserID == *player.UserID {
			return repositories.ErrPlayerUserConflict
		}
	}
	r.nextID++
	player.ID = r.nextID
	copied := *player
	r.players[player.ID] = &copied
	return nil
}

func (r *fakePlayerRepo) GetByID(_ context.Context, id int) (*models.Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePlayerRepo) GetByEventAndEmail(_ context.Context, eventID int, email string) (*models.Player, error) {
	for _, p := range r.players {
		if p.EventID == eventID && p.RegistrationEmail == email {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) GetByEventAndUser(_ context.Context, eventID, userID int) (*models.Player, error) {
	for _, p := range r.players {
		if p.EventID == eventID && p.UserID != nil && *p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) ListByEvent(_ context.Context, eventID int, filter repositories.ListPlayersFilter) ([]*models.Player, error) {
	players := make([]*models.Player, 0)
	for _, p := range r.players {
		if p.EventID != eventID {
			continue
		}
		if filter.IsImortal != nil && p.IsImortal != *filter.IsImortal {
			continue
		}
		if filter.MinScore != nil && p.TotalScore <= *filter.MinScore {
			continue
		}
		copied := *p
		players = append(players, &copied)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].TotalScore != players[j].TotalScore {
			return players[i].TotalScore > players[j].TotalScore
		}
		return players[i].FullName < players[j].FullName
	})
	return players, nil
}

func (r *fakePlayerRepo) Update(_ context.Context, player *models.Player) error {
	stored, ok := r.players[player.ID]
	if !ok || stored.EventID != player.EventID {
		return repositories.ErrPlayerNotFound
	}
	stored.FullName = player.FullName
	stored.SocialName = player.SocialName
	stored.RegistrationEmail = player.RegistrationEmail
	stored.IsImortal = player.IsImortal
	stored.IsPresent = player.IsPresent
	stored.UserID = player.UserID
	return nil
}

func (r *fakePlayerRepo) Delete(_ context.Context, id, eventID int) error {
	p, ok := r.players[id]
	if !ok || p.EventID != eventID {
		return repositories.ErrPlayerNotFound
	}
	delete(r.players, id)
	return nil
}

func (r *fakePlayerRepo) GetOrCreate(ctx context.Context, player *models.Player) (bool, error) {
	existing, err := r.GetByEventAndEmail(ctx, player.EventID, player.RegistrationEmail)
	if err == nil {
		*player = *existing
		return false, nil
	}
	if createErr := r.Create(ctx, player); createErr != nil {
		return false, createErr
	}
	return true, nil
}

func (r *fakePlayerRepo) UpdateTotalScore(_ context.Context, _ repositories.SQLExecutor, playerID, total int) error {
	p, ok := r.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.TotalScore = total
	return nil
}

func (r *fakePlayerRepo) MarkImortal(_ context.Context, _ repositories.SQLExecutor, playerID int) error {
	p, ok := r.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.IsImortal = true
	return nil
}

func (r *fakePlayerRepo) DecrementTotalScore(_ context.Context, _ repositories.SQLExecutor, playerID, delta int) error {
	p, ok := r.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.TotalScore -= delta
	if p.TotalScore < 0 {
		p.TotalScore = 0
	}
	return nil
}

func (r *fakePlayerRepo) mustAdd(t *testing.T, eventID int, name, email string) *models.Player {
	t.Helper()
	player := &models.Player{FullName: name, RegistrationEmail: email, EventID: eventID}
	if err := r.Create(context.Background(), player); err != nil {
		t.Fatalf("failed to add player: %v", err)
	}
	return player
}

// --- сумулы ---

type fakeSumulaRepo struct {
	nextID   int
	sumulas  map[int]*models.Sumula
	referees map[int]map[int]bool // sumulaID -> staffID
	staff    *fakeStaffRepo

	// scores имитирует ON DELETE CASCADE для записей очков, если задан.
	scores *fakeScoreRepo

	// numberMu имитирует SELECT ... FOR UPDATE: захватывается в
	// LockMaxImortalNumber и держится до вставки имортальной сумулы.
	numberMu     sync.Mutex
	numberLocked bool
}

func newFakeSumulaRepo(staff *fakeStaffRepo) *fakeSumulaRepo {
	return &fakeSumulaRepo{
		sumulas:  make(map[int]*models.Sumula),
		referees: make(map[int]map[int]bool),
		staff:    staff,
	}
}

func (r *fakeSumulaRepo) Create(_ context.Context, _ repositories.SQLExecutor, sumula *models.Sumula) error {
	if sumula.Number != nil {
		for _, s := range r.sumulas {
			if s.EventID == sumula.EventID && s.Number != nil && *s.Number == *sumula.Number {
				if r.numberLocked {
					r.numberLocked = false
					r.numberMu.Unlock()
				}
				return repositories.ErrSumulaNumberConflict
			}
		}
	}
	r.nextID++
	sumula.ID = r.nextID
	copied := *sumula
	r.sumulas[sumula.ID] = &copied
	if sumula.Kind == models.SumulaImortal && r.numberLocked {
		r.numberLocked = false
		r.numberMu.Unlock()
	}
	return nil
}

func (r *fakeSumulaRepo) GetByID(_ context.Context, id int, kind models.SumulaKind) (*models.Sumula, error) {
	s, ok := r.sumulas[id]
	if !ok || s.Kind != kind {
		return nil, repositories.ErrSumulaNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSumulaRepo) ListByEvent(_ context.Context, eventID int, kind models.SumulaKind, active *bool) ([]*models.Sumula, error) {
	sumulas := make([]*models.Sumula, 0)
	for _, s := range r.sumulas {
		if s.EventID != eventID || s.Kind != kind {
			continue
		}
		if active != nil && s.Active != *active {
			continue
		}
		copied := *s
		sumulas = append(sumulas, &copied)
	}
	sort.Slice(sumulas, func(i, j int) bool { return sumulas[i].Name < sumulas[j].Name })
	return sumulas, nil
}

func (r *fakeSumulaRepo) Update(_ context.Context, _ repositories.SQLExecutor, sumula *models.Sumula) error {
	stored, ok := r.sumulas[sumula.ID]
	if !ok || stored.Kind != sumula.Kind {
		return repositories.ErrSumulaNotFound
	}
	stored.Name = sumula.Name
	stored.Active = sumula.Active
	stored.Description = sumula.Description
	stored.Rounds = sumula.Rounds
	return nil
}

func (r *fakeSumulaRepo) Delete(_ context.Context, id int, kind models.SumulaKind) error {
	s, ok := r.sumulas[id]
	if !ok || s.Kind != kind {
		return repositories.ErrSumulaNotFound
	}
	delete(r.sumulas, id)
	if r.scores != nil {
		for scoreID, score := range r.scores.scores {
			if (score.SumulaClassificatoriaID != nil && *score.SumulaClassificatoriaID == id) ||
				(score.SumulaImortalID != nil && *score.SumulaImortalID == id) {
				delete(r.scores.scores, scoreID)
			}
		}
	}
	return nil
}

func (r *fakeSumulaRepo) LockMaxImortalNumber(_ context.Context, _ repositories.SQLExecutor, eventID int) (int, error) {
	r.numberMu.Lock()
	r.numberLocked = true
	max := 0
	for _, s := range r.sumulas {
		if s.EventID == eventID && s.Kind == models.SumulaImortal && s.Number != nil && *s.Number > max {
			max = *s.Number
		}
	}
	return max, nil
}

func (r *fakeSumulaRepo) AddReferee(_ context.Context, _ repositories.SQLExecutor, sumulaID, staffID int) error {
	if r.referees[sumulaID] == nil {
		r.referees[sumulaID] = make(map[int]bool)
	}
	r.referees[sumulaID][staffID] = true
	return nil
}

func (r *fakeSumulaRepo) ListReferees(ctx context.Context, sumulaID int) ([]*models.Staff, error) {
	referees := make([]*models.Staff, 0)
	for staffID := range r.referees[sumulaID] {
		if s, ok := r.staff.staff[staffID]; ok {
			copied := *s
			referees = append(referees, &copied)
		}
	}
	sort.Slice(referees, func(i, j int) bool { return referees[i].FullName < referees[j].FullName })
	return referees, nil
}

func (r *fakeSumulaRepo) IsReferee(_ context.Context, sumulaID, staffID int) (bool, error) {
	return r.referees[sumulaID][staffID], nil
}

// --- записи очков ---

type fakeScoreRepo struct {
	nextID int
	scores map[int]*models.PlayerScore
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{scores: make(map[int]*models.PlayerScore)}
}

func (r *fakeScoreRepo) Create(_ context.Context, _ repositories.SQLExecutor, score *models.PlayerScore) error {
	if !score.HasExactlyOneSumula() {
		return repositories.ErrPlayerScoreLinkInvalid
	}
	r.nextID++
	score.ID = r.nextID
	copied := *score
	r.scores[score.ID] = &copied
	return nil
}

func (r *fakeScoreRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.PlayerScore, error) {
	s, ok := r.scores[id]
	if !ok {
		return nil, repositories.ErrPlayerScoreNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeScoreRepo) ListBySumula(_ context.Context, sumulaID int, kind models.SumulaKind) ([]*models.PlayerScore, error) {
	scores := make([]*models.PlayerScore, 0)
	for _, s := range r.scores {
		var link *int
		if kind == models.SumulaImortal {
			link = s.SumulaImortalID
		} else {
			link = s.SumulaClassificatoriaID
		}
		if link != nil && *link == sumulaID {
			copied := *s
			scores = append(scores, &copied)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores, nil
}

func (r *fakeScoreRepo) ListByPlayer(_ context.Context, playerID int) ([]*models.PlayerScore, error) {
	scores := make([]*models.PlayerScore, 0)
	for _, s := range r.scores {
		if s.PlayerID == playerID {
			copied := *s
			scores = append(scores, &copied)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores, nil
}

func (r *fakeScoreRepo) UpdatePoints(_ context.Context, _ repositories.SQLExecutor, id, points int) error {
	s, ok := r.scores[id]
	if !ok {
		return repositories.ErrPlayerScoreNotFound
	}
	s.Points = points
	return nil
}

func (r *fakeScoreRepo) UpdateRoundsNumber(_ context.Context, _ repositories.SQLExecutor, id, roundsNumber int) error {
	s, ok := r.scores[id]
	if !ok {
		return repositories.ErrPlayerScoreNotFound
	}
	s.RoundsNumber = roundsNumber
	return nil
}

func (r *fakeScoreRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.scores[id]; !ok {
		return repositories.ErrPlayerScoreNotFound
	}
	delete(r.scores, id)
	return nil
}

func (r *fakeScoreRepo) SumPointsByPlayer(_ context.Context, _ repositories.SQLExecutor, playerID int) (int, error) {
	total := 0
	for _, s := range r.scores {
		if s.PlayerID == playerID {
			total += s.Points
		}
	}
	return total, nil
}

// --- итоги ---

type fakeResultsRepo struct {
	nextID   int
	results  map[int]*models.Results
	imortals map[int][]int // resultsID -> playerIDs
	top4     map[int][]int
	players  *fakePlayerRepo
}

func newFakeResultsRepo(players *fakePlayerRepo) *fakeResultsRepo {
	return &fakeResultsRepo{
		results:  make(map[int]*models.Results),
		imortals: make(map[int][]int),
		top4:     make(map[int][]int),
		players:  players,
	}
}

func (r *fakeResultsRepo) Create(_ context.Context, _ repositories.SQLExecutor, results *models.Results) error {
	for _, existing := range r.results {
		if existing.EventID == results.EventID {
			return repositories.ErrResultsEventConflict
		}
	}
	r.nextID++
	results.ID = r.nextID
	copied := *results
	r.results[results.ID] = &copied
	return nil
}

func (r *fakeResultsRepo) GetByEventID(_ context.Context, eventID int) (*models.Results, error) {
	for _, res := range r.results {
		if res.EventID == eventID {
			copied := *res
			return &copied, nil
		}
	}
	return nil, repositories.ErrResultsNotFound
}

func (r *fakeResultsRepo) UpdateAwards(_ context.Context, results *models.Results) error {
	stored, ok := r.results[results.ID]
	if !ok {
		return repositories.ErrResultsNotFound
	}
	stored.PaladinID = results.PaladinID
	stored.AmbassadorID = results.AmbassadorID
	return nil
}

func (r *fakeResultsRepo) AddImortal(_ context.Context, _ repositories.SQLExecutor, resultsID, playerID int) error {
	r.imortals[resultsID] = append(r.imortals[resultsID], playerID)
	return nil
}

func (r *fakeResultsRepo) ClearImortals(_ context.Context, _ repositories.SQLExecutor, resultsID int) error {
	delete(r.imortals, resultsID)
	return nil
}

func (r *fakeResultsRepo) ListImortals(ctx context.Context, resultsID int) ([]*models.Player, error) {
	return r.listPlayers(ctx, r.imortals[resultsID])
}

func (r *fakeResultsRepo) AddTop4(_ context.Context, resultsID, playerID int) error {
	r.top4[resultsID] = append(r.top4[resultsID], playerID)
	return nil
}

func (r *fakeResultsRepo) ClearTop4(_ context.Context, resultsID int) error {
	delete(r.top4, resultsID)
	return nil
}

func (r *fakeResultsRepo) ListTop4(ctx context.Context, resultsID int) ([]*models.Player, error) {
	return r.listPlayers(ctx, r.top4[resultsID])
}

func (r *fakeResultsRepo) listPlayers(ctx context.Context, ids []int) ([]*models.Player, error) {
	players := make([]*models.Player, 0, len(ids))
	for _, id := range ids {
		p, err := r.players.GetByID(ctx, id)
		if err != nil {
			continue
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].TotalScore > players[j].TotalScore })
	return players, nil
}

// --- права ---

type fakePermissionRepo struct {
	grants map[string]bool
	roles  map[models.RoleName]bool
}

func newFakePermissionRepo() *fakePermissionRepo {
	return &fakePermissionRepo{
		grants: make(map[string]bool),
		roles:  make(map[models.RoleName]bool),
	}
}

func permKey(userID, eventID int, capability models.Capability) string {
	return fmt.Sprintf("%d/%d/%s", userID, eventID, capability)
}

func (r *fakePermissionRepo) Grant(_ context.Context, _ repositories.SQLExecutor, userID, eventID int, capability models.Capability) error {
	r.grants[permKey(userID, eventID, capability)] = true
	return nil
}

func (r *fakePermissionRepo) Has(_ context.Context, userID, eventID int, capability models.Capability) (bool, error) {
	return r.grants[permKey(userID, eventID, capability)], nil
}

func (r *fakePermissionRepo) RevokeAllForEvent(_ context.Context, eventID int) error {
	for key := range r.grants {
		if strings.Contains(key, fmt.Sprintf("/%d/", eventID)) {
			delete(r.grants, key)
		}
	}
	return nil
}

func (r *fakePermissionRepo) ListEventIDsForUser(_ context.Context, userID int) ([]int, error) {
	seen := make(map[int]bool)
	ids := make([]int, 0)
	for key := range r.grants {
		var uid, eid int
		var capability string
		if _, err := fmt.Sscanf(key, "%d/%d/%s", &uid, &eid, &capability); err != nil {
			continue
		}
		if uid == userID && !seen[eid] {
			seen[eid] = true
			ids = append(ids, eid)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *fakePermissionRepo) EnsureRole(_ context.Context, name models.RoleName) error {
	r.roles[name] = true
	return nil
}
