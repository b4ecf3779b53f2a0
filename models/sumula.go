package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SumulaKind различает два вида сумул: классификаторную и имортальную.
// Имортальные сумулы нумеруются последовательно в рамках события.
type SumulaKind string

const (
	SumulaClassificatoria SumulaKind = "classificatoria"
	SumulaImortal         SumulaKind = "imortal"
)

func (k SumulaKind) Valid() bool {
	return k == SumulaClassificatoria || k == SumulaImortal
}

// Sumula — один раунд подсчета очков. Rounds хранит свободную структуру
// результатов раундов (упорядоченный список записей) как JSON.
type Sumula struct {
	ID          int             `json:"id" db:"id"`
	Kind        SumulaKind      `json:"kind" db:"kind"`
	Name        string          `json:"name" db:"name"`
	Active      bool            `json:"active" db:"active"`
	Description string          `json:"description" db:"description"`
	Number      *int            `json:"number,omitempty" db:"number"`
	EventID     int             `json:"event_id" db:"event_id"`
	Rounds      json.RawMessage `json:"rounds,omitempty" db:"rounds"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`

	Referees     []Staff       `json:"referees,omitempty" db:"-"`
	PlayerScores []PlayerScore `json:"players_score,omitempty" db:"-"`
}

// ImortalName возвращает отображаемое имя имортальной сумулы по ее номеру.
func ImortalName(number int) string {
	return fmt.Sprintf("Imortais %02d", number)
}
