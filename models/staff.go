package models

import "time"

// Staff — человек с операционными правами на событие (монитор, менеджер).
// Пара (registration_email, event) и пара (user, event) уникальны.
type Staff struct {
	ID                int       `json:"id" db:"id"`
	FullName          string    `json:"full_name" db:"full_name"`
	RegistrationEmail string    `json:"registration_email" db:"registration_email"`
	IsManager         bool      `json:"is_manager" db:"is_manager"`
	UserID            *int      `json:"user_id,omitempty" db:"user_id"`
	EventID           int       `json:"event_id" db:"event_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
