package models

import "time"

// Event представляет одно событие (инстанс соревнования). Событие владеет
// всеми остальными сущностями и создается из одноразового токена (1:1).
type Event struct {
	ID                        int       `json:"id" db:"id"`
	TokenID                   int       `json:"-" db:"token_id"`
	Name                      string    `json:"name" db:"name"`
	Active                    bool      `json:"active" db:"active"`
	AdminEmail                string    `json:"admin_email" db:"admin_email"`
	JoinCode                  string    `json:"join_code" db:"join_code"`
	IsFinalResultsPublished   bool      `json:"is_final_results_published" db:"is_final_results_published"`
	IsImortalResultsPublished bool      `json:"is_imortal_results_published" db:"is_imortal_results_published"`
	SumulasGenerated          bool      `json:"sumulas_generated" db:"sumulas_generated"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
	LogoKey                   *string   `json:"-" db:"logo_key"`
	LogoURL                   *string   `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Staff   []Staff  `json:"staff,omitempty" db:"-"`
	Players []Player `json:"players,omitempty" db:"-"`
	Sumulas []Sumula `json:"sumulas,omitempty" db:"-"`
}

// EventRole — роль пользователя внутри конкретного события.
// Всегда возвращается наивысшая роль: admin > manager > staff > player.
type EventRole string

const (
	EventRoleAdmin   EventRole = "admin"
	EventRoleManager EventRole = "manager"
	EventRoleStaff   EventRole = "staff"
	EventRolePlayer  EventRole = "player"
)

// UserEvent связывает событие с ролью пользователя в нем.
type UserEvent struct {
	Event *Event    `json:"event"`
	Role  EventRole `json:"role"`
}
