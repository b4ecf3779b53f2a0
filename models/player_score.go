package models

// PlayerScore — атомарный факт начисления очков: связывает игрока ровно
// с одной сумулой (классификаторной ИЛИ имортальной, никогда обеими).
// EventID денормализован и обязан совпадать с событием игрока.
type PlayerScore struct {
	ID                      int  `json:"id" db:"id"`
	PlayerID                int  `json:"player_id" db:"player_id"`
	EventID                 int  `json:"event_id" db:"event_id"`
	Points                  int  `json:"points" db:"points"`
	RoundsNumber            int  `json:"rounds_number" db:"rounds_number"`
	SumulaClassificatoriaID *int `json:"sumula_classificatoria_id,omitempty" db:"sumula_classificatoria_id"`
	SumulaImortalID         *int `json:"sumula_imortal_id,omitempty" db:"sumula_imortal_id"`

	Player *Player `json:"player,omitempty" db:"-"`
}

// HasExactlyOneSumula сообщает, выполняется ли инвариант эксклюзивности
// ссылки на сумулу.
func (ps *PlayerScore) HasExactlyOneSumula() bool {
	return (ps.SumulaClassificatoriaID != nil) != (ps.SumulaImortalID != nil)
}
