package entity

import (
	"github.com/google/uuid"
)

// User is the read-only view of an account owned by the user service.
type User struct {
	ID       uuid.UUID `db:"id"`
	Email    string    `db:"email"`
	FullName string    `db:"full_name"`
	Role     string    `db:"role"`
}
