package model

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Staff struct {
	Base
	AccountID uuid.UUID  `json:"account_id" db:"account_id"`
	Name      string     `json:"name" db:"name"`
	Positions []Position `json:"positions" db:"-"`
}

// PositionStaff is the join row between a staff member and a position.
type PositionStaff struct {
	StaffID   uuid.UUID `json:"staff_id" db:"staff_id"`
	Position  Position  `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
