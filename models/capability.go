package models

// Capability — именованное право, всегда выдаваемое в рамках конкретного
// события. Имена следуют схеме {verb}_{resource}_event, где resource может
// отсутствовать для прав на само событие.
type Capability string

const (
	CapAddEvent    Capability = "add_event"
	CapChangeEvent Capability = "change_event"
	CapViewEvent   Capability = "view_event"
	CapDeleteEvent Capability = "delete_event"

	CapAddSumulaEvent    Capability = "add_sumula_event"
	CapChangeSumulaEvent Capability = "change_sumula_event"
	CapViewSumulaEvent   Capability = "view_sumula_event"
	CapDeleteSumulaEvent Capability = "delete_sumula_event"

	CapAddPlayerEvent    Capability = "add_player_event"
	CapChangePlayerEvent Capability = "change_player_event"
	CapViewPlayerEvent   Capability = "view_player_event"
	CapDeletePlayerEvent Capability = "delete_player_event"

	CapAddPlayerScoreEvent    Capability = "add_player_score_event"
	CapChangePlayerScoreEvent Capability = "change_player_score_event"
	CapViewPlayerScoreEvent   Capability = "view_player_score_event"
	CapDeletePlayerScoreEvent Capability = "delete_player_score_event"
)

// AllCapabilities перечисляет весь универсум прав, из которого строятся
// наборы ролей.
func AllCapabilities() []Capability {
	return []Capability{
		CapAddEvent, CapChangeEvent, CapViewEvent, CapDeleteEvent,
		CapAddSumulaEvent, CapChangeSumulaEvent, CapViewSumulaEvent, CapDeleteSumulaEvent,
		CapAddPlayerEvent, CapChangePlayerEvent, CapViewPlayerEvent, CapDeletePlayerEvent,
		CapAddPlayerScoreEvent, CapChangePlayerScoreEvent, CapViewPlayerScoreEvent, CapDeletePlayerScoreEvent,
	}
}

// RoleName — имя одной из четырех статических ролей.
type RoleName string

const (
	RoleEventAdmin   RoleName = "event_admin"
	RoleStaffManager RoleName = "staff_manager"
	RoleStaffMember  RoleName = "staff_member"
	RolePlayer       RoleName = "player"
)

// AllRoles перечисляет роли, которые должны существовать в хранилище.
func AllRoles() []RoleName {
	return []RoleName{RoleEventAdmin, RoleStaffManager, RoleStaffMember, RolePlayer}
}
