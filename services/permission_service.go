package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mepa-comp/scoring-system/models"
	"github.com/mepa-comp/scoring-system/repositories"
)

// roleCapabilities — статическая таблица роль -> набор прав, построенная
// один раз при загрузке пакета. Наборы воспроизводят декларативные правила
// фильтрации оригинальной системы, но без поиска по подстрокам имен на
// каждый запрос.
var roleCapabilities = buildRoleCapabilities()

func buildRoleCapabilities() map[models.RoleName]map[models.Capability]struct{} {
	all := models.AllCapabilities()

	filter := func(include func(c models.Capability) bool, exclude ...models.Capability) map[models.Capability]struct{} {
		set := make(map[models.Capability]struct{})
		for _, c := range all {
			if include(c) {
				set[c] = struct{}{}
			}
		}
		for _, c := range exclude {
			delete(set, c)
		}
		return set
	}

	hasVerb := func(c models.Capability, verb string) bool {
		return strings.HasPrefix(string(c), verb+"_")
	}
	hasResource := func(c models.Capability, resource string) bool {
		return strings.Contains(string(c), resource)
	}

	return map[models.RoleName]map[models.Capability]struct{}{
		// Админ события: всё, кроме add_event — событие создается из
		// токена, а не выдается правом.
		models.RoleEventAdmin: filter(
			func(c models.Capability) bool { return true },
			models.CapAddEvent,
		),
		// Менеджер: просмотр события + любые действия над сумулами и
		// игроками (включая записи очков), кроме удаления игроков.
		models.RoleStaffManager: filter(
			func(c models.Capability) bool {
				return c == models.CapViewEvent ||
					hasResource(c, "sumula") || hasResource(c, "player")
			},
			models.CapDeletePlayerEvent,
		),
		// Монитор: просмотр и изменение, кроме изменения самого события.
		models.RoleStaffMember: filter(
			func(c models.Capability) bool {
				return hasVerb(c, "view") || hasVerb(c, "change")
			},
			models.CapChangeEvent,
		),
		// Игрок: только просмотр.
		models.RolePlayer: filter(
			func(c models.Capability) bool { return hasVerb(c, "view") },
		),
	}
}

// ResolveRoleCapabilities возвращает набор прав роли. Для неизвестного
// имени роли возвращает nil — это сигнал "такой роли нет".
func ResolveRoleCapabilities(role models.RoleName) []models.Capability {
	set, ok := roleCapabilities[role]
	if !ok {
		return nil
	}
	// Детерминированный порядок: как в универсуме прав.
	caps := make([]models.Capability, 0, len(set))
	for _, c := range models.AllCapabilities() {
		if _, ok := set[c]; ok {
			caps = append(caps, c)
		}
	}
	return caps
}

// PermissionService — движок пообъектных прав: выдача ролей на конкретное
// событие и проверка членства (user, capability, event).
type PermissionService interface {
	// GrantRoleOnEvent выдает пользователю все права роли в рамках события.
	// Идемпотентно по каждому праву.
	GrantRoleOnEvent(ctx context.Context, exec repositories.SQLExecutor, userID int, role models.RoleName, eventID int) error

	// Check сообщает, обладает ли пользователь правом в рамках события.
	Check(ctx context.Context, userID int, capability models.Capability, eventID int) (bool, error)

	// Require возвращает ErrForbiddenOperation, если права нет. Отсутствие
	// права отличается от "не найдено": проверка выполняется после
	// резолюции объекта.
	Require(ctx context.Context, userID int, capability models.Capability, eventID int) error

	RevokeAllOnEvent(ctx context.Context, eventID int) error
}

type permissionService struct {
	permissionRepo repositories.PermissionRepository
}

func NewPermissionService(permissionRepo repositories.PermissionRepository) PermissionService {
	return &permissionService{permissionRepo: permissionRepo}
}

func (s *permissionService) GrantRoleOnEvent(ctx context.Context, exec repositories.SQLExecutor, userID int, role models.RoleName, eventID int) error {
	caps := ResolveRoleCapabilities(role)
	if caps == nil {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	for _, capability := range caps {
		if err := s.permissionRepo.Grant(ctx, exec, userID, eventID, capability); err != nil {
			return fmt.Errorf("failed to grant %s on event %d: %w", capability, eventID, err)
		}
	}
	return nil
}

func (s *permissionService) Check(ctx context.Context, userID int, capability models.Capability, eventID int) (bool, error) {
	return s.permissionRepo.Has(ctx, userID, eventID, capability)
}

func (s *permissionService) Require(ctx context.Context, userID int, capability models.Capability, eventID int) error {
	ok, err := s.Check(ctx, userID, capability, eventID)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !ok {
		return ErrForbiddenOperation
	}
	return nil
}

func (s *permissionService) RevokeAllOnEvent(ctx context.Context, eventID int) error {
	return s.permissionRepo.RevokeAllForEvent(ctx, eventID)
}

// EnsureRoles — идемпотентная инициализация: гарантирует, что четыре имени
// ролей существуют в хранилище. Вызывается при старте приложения; хранилище
// передается явно, без глобального состояния.
func EnsureRoles(ctx context.Context, permissionRepo repositories.PermissionRepository) error {
	for _, role := range models.AllRoles() {
		if err := permissionRepo.EnsureRole(ctx, role); err != nil {
			return fmt.Errorf("failed to ensure role %q: %w", role, err)
		}
	}
	return nil
}
