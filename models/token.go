package models

import "time"

// Token представляет код одноразового использования для создания события.
type Token struct {
	ID        int       `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
