package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FullName      *string   `db:"full_name" json:"full_name,omitempty"`
	PasswordHash  []byte    `db:"password_hash" json:"-"`
	PasswordSalt  []byte    `db:"password_salt" json:"-"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
