package models

import "time"

// Player — участник события. TotalScore является производным значением:
// он поддерживается исключительно движком агрегации очков и никогда
// не выставляется напрямую обработчиками.
type Player struct {
	ID                int       `json:"id" db:"id"`
	FullName          string    `json:"full_name" db:"full_name"`
	SocialName        string    `json:"social_name" db:"social_name"`
	TotalScore        int       `json:"total_score" db:"total_score"`
	RegistrationEmail string    `json:"registration_email" db:"registration_email"`
	IsImortal         bool      `json:"is_imortal" db:"is_imortal"`
	IsPresent         bool      `json:"is_present" db:"is_present"`
	UserID            *int      `json:"user_id,omitempty" db:"user_id"`
	EventID           int       `json:"event_id" db:"event_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// DisplayName возвращает социальное имя, если оно задано.
func (p *Player) DisplayName() string {
	if p.SocialName != "" {
		return p.SocialName
	}
	return p.FullName
}
