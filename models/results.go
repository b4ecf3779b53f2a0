package models

// Results — вычисляемый/курируемый набор итогов события (1:1 с событием).
// Imortals пересчитываются автоматически; top4, паладин и посол назначаются
// администратором события.
type Results struct {
	ID           int  `json:"id" db:"id"`
	EventID      int  `json:"-" db:"event_id"`
	PaladinID    *int `json:"-" db:"paladin_id"`
	AmbassadorID *int `json:"-" db:"ambassador_id"`

	Imortals   []Player `json:"imortals" db:"-"`
	Top4       []Player `json:"top4" db:"-"`
	Paladin    *Player  `json:"paladin,omitempty" db:"-"`
	Ambassador *Player  `json:"ambassador,omitempty" db:"-"`
}

// Предельные размеры курируемых наборов.
const (
	MaxImortals = 3
	MaxTop4     = 4
)
